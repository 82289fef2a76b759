package result

// This file contains the human readable reporter.

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/perfgo/subunit/model"
)

type reporterStyles struct {
	pass, fail, skip, dim lipgloss.Style
}

// Reporter writes one colored line per finished test, prefixed with the
// position reported by progress directives, and the evidence of tests that
// did not succeed.
type Reporter struct {
	w        io.Writer
	styles   reporterStyles
	progress *ProgressModel
	summary  Summary

	now    time.Time
	starts map[string]time.Time
	passed int
}

// NewReporter returns a reporter writing to w. Colors are used only when
// color is set and w is a terminal.
func NewReporter(w io.Writer, color bool) *Reporter {
	r := lipgloss.NewRenderer(w)
	styles := reporterStyles{
		pass: r.NewStyle(),
		fail: r.NewStyle(),
		skip: r.NewStyle(),
		dim:  r.NewStyle(),
	}
	if color {
		styles = reporterStyles{
			pass: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
			fail: r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			skip: r.NewStyle().Foreground(lipgloss.Color("11")),
			dim:  r.NewStyle().Foreground(lipgloss.Color("240")),
		}
	}
	return &Reporter{
		w:        w,
		styles:   styles,
		progress: NewProgressModel(),
		starts:   make(map[string]time.Time),
	}
}

var reporterLabels = map[model.Outcome]string{
	model.Success:   "PASS",
	model.Failure:   "FAIL",
	model.Error:     "ERROR",
	model.Skip:      "SKIP",
	model.XFail:     "XFAIL",
	model.UxSuccess: "UXSUCCESS",
}

func (r *Reporter) label(o model.Outcome) string {
	text := fmt.Sprintf("%-9s", reporterLabels[o])
	switch {
	case o == model.Skip:
		return r.styles.skip.Render(text)
	case o.Successful():
		return r.styles.pass.Render(text)
	}
	return r.styles.fail.Render(text)
}

func (r *Reporter) position() string {
	if width := r.progress.Width(); width > 0 {
		digits := len(fmt.Sprint(width))
		return fmt.Sprintf("[%*d/%d]", digits, r.progress.Pos(), width)
	}
	return fmt.Sprintf("[%d]", r.summary.Count)
}

func (r *Reporter) printf(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.w, format, args...); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (r *Reporter) StartTestRun() error { return nil }

func (r *Reporter) StopTestRun() error {
	line := fmt.Sprintf("Ran %d tests: %d passed, %d failed, %d skipped", r.summary.Count, r.passed, r.summary.Failed, r.summary.Skipped)
	if r.summary.Successful() {
		line = r.styles.pass.Render(line)
	} else {
		line = r.styles.fail.Render(line)
	}
	return r.printf("%s\n", line)
}

func (r *Reporter) StartTest(id string) error {
	r.starts[id] = r.now
	return nil
}

func (r *Reporter) StopTest(string) error { return nil }

func (r *Reporter) AddOutcome(res model.Result) error {
	if !res.Outcome.Final() {
		return nil
	}
	_ = r.summary.AddOutcome(res)
	r.progress.Advance()
	if res.Outcome.Successful() && res.Outcome != model.Skip {
		r.passed++
	}

	line := fmt.Sprintf("%s %s %s", r.styles.dim.Render(r.position()), r.label(res.Outcome), res.TestID)
	if start, ok := r.starts[res.TestID]; ok && !start.IsZero() && !r.now.IsZero() {
		line += r.styles.dim.Render(fmt.Sprintf(" (%s)", r.now.Sub(start).Round(time.Millisecond)))
	}
	delete(r.starts, res.TestID)
	if err := r.printf("%s\n", line); err != nil {
		return err
	}

	if res.Outcome.Successful() || len(res.Details) == 0 {
		return nil
	}
	for _, name := range res.Details.Names() {
		a := res.Details[name]
		if a.ContentType.Type != "text" {
			continue
		}
		body := strings.TrimRight(string(a.Data), "\n")
		if err := r.printf("    %s:\n", name); err != nil {
			return err
		}
		for _, l := range strings.Split(body, "\n") {
			if err := r.printf("      %s\n", l); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Reporter) Tags([]string, []string) error { return nil }

func (r *Reporter) Progress(p model.Progress) error {
	r.progress.Apply(p)
	return nil
}

func (r *Reporter) Time(t time.Time) error {
	r.now = t
	return nil
}

func (r *Reporter) File(model.File) error { return nil }

// Successful reports whether every test passed.
func (r *Reporter) Successful() bool {
	return r.summary.Successful()
}
