package result

// This file contains the tabular sinks: one row per finished test.

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/perfgo/subunit/model"
)

// Columns is the header of the tabular outputs.
var Columns = []string{"test", "status", "start_time", "stop_time"}

// Row is one finished test.
type Row struct {
	TestID string
	Status model.Outcome
	Start  time.Time
	Stop   time.Time
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Strings renders the row in Columns order.
func (r Row) Strings() []string {
	return []string{r.TestID, r.Status.String(), formatTime(r.Start), formatTime(r.Stop)}
}

// rows turns the event stream into rows using the latest Time call as the
// clock.
type rows struct {
	Base
	now    time.Time
	starts map[string]time.Time
	emit   func(Row) error
}

func (r *rows) Time(t time.Time) error {
	r.now = t
	return nil
}

func (r *rows) StartTest(id string) error {
	if r.starts == nil {
		r.starts = make(map[string]time.Time)
	}
	r.starts[id] = r.now
	return nil
}

func (r *rows) AddOutcome(res model.Result) error {
	if !res.Outcome.Final() {
		return nil
	}
	start, ok := r.starts[res.TestID]
	if !ok {
		start = r.now
	}
	delete(r.starts, res.TestID)
	return r.emit(Row{TestID: res.TestID, Status: res.Outcome, Start: start, Stop: r.now})
}

// CSV writes a header at StartTestRun and a row per finished test.
type CSV struct {
	rows
	w *csv.Writer
}

func NewCSV(w io.Writer) *CSV {
	c := &CSV{w: csv.NewWriter(w)}
	c.emit = c.write
	return c
}

func (c *CSV) write(row Row) error {
	if err := c.w.Write(row.Strings()); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	return nil
}

func (c *CSV) StartTestRun() error {
	if err := c.w.Write(Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	return nil
}

func (c *CSV) StopTestRun() error {
	c.w.Flush()
	return c.w.Error()
}

// XLSX collects rows and writes a workbook at StopTestRun.
type XLSX struct {
	rows
	w     io.Writer
	sheet string
	data  []Row
}

// XLSXSheet is the name of the results sheet.
const XLSXSheet = "Results"

func NewXLSX(w io.Writer) *XLSX {
	x := &XLSX{w: w, sheet: XLSXSheet}
	x.emit = func(row Row) error {
		x.data = append(x.data, row)
		return nil
	}
	return x
}

func (x *XLSX) StopTestRun() error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", x.sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(x.sheet, "A1", &Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range x.data {
		values := row.Strings()
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(x.sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row for %q: %w", row.TestID, err)
		}
	}
	if err := f.SetColWidth(x.sheet, "A", "A", 60); err != nil {
		return err
	}
	if err := f.SetColWidth(x.sheet, "B", "D", 30); err != nil {
		return err
	}

	if err := f.Write(x.w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
