package cli

// This file contains the commands summarizing a stream: stats, ls, csv,
// report and profile.

import (
	"bytes"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/perfgo/subunit/history"
	"github.com/perfgo/subunit/model"
	"github.com/perfgo/subunit/result"
)

func inputFormat(ctx *cli.Context) (string, error) {
	return parseFormat(ctx.String("input-format"), true)
}

func (a *App) stats(ctx *cli.Context) error {
	format, err := inputFormat(ctx)
	if err != nil {
		return err
	}
	r, err := a.consume(ctx, model.HistoryTypeStats, format, result.Discard)
	if err == nil {
		err = r.stats.Format(ctx.App.Writer)
	}
	return a.finish(r, err, true)
}

func (a *App) ls(ctx *cli.Context) error {
	format, err := inputFormat(ctx)
	if err != nil {
		return err
	}

	printer := result.NewTestIDPrinter(ctx.App.Writer,
		result.WithTimes(ctx.Bool("times")),
		result.WithExists(ctx.Bool("exists")),
		result.WithShellQuoting(ctx.Bool("shell")),
	)
	var sink result.Sink = printer
	if !ctx.Bool("no-passthrough") {
		router := result.NewRouter(printer)
		router.AddRule(result.NewCat(ctx.App.Writer), result.MatchTestID(""))
		sink = router
	}

	r, err := a.consume(ctx, model.HistoryTypeStats, format, sink)
	return a.finish(r, err, true)
}

func (a *App) csv(ctx *cli.Context) error {
	format, err := inputFormat(ctx)
	if err != nil {
		return err
	}

	w, closeOutput, err := outputWriter(ctx)
	if err != nil {
		return err
	}

	// keep a copy of the table for the history record
	var artifact bytes.Buffer
	var sink result.Sink
	artifactType, artifactName := model.ArtifactTypeCSV, "results.csv"
	if ctx.Bool("xlsx") {
		sink = result.NewXLSX(io.MultiWriter(w, &artifact))
		artifactType, artifactName = model.ArtifactTypeXLSX, "results.xlsx"
	} else {
		sink = result.NewCSV(io.MultiWriter(w, &artifact))
	}

	r, err := a.consume(ctx, model.HistoryTypeConvert, format, sink)
	if cerr := closeOutput(); err == nil {
		err = cerr
	}
	if err == nil {
		r.artifacts = append(r.artifacts, history.ArtifactFile{Type: artifactType, Name: artifactName, Data: artifact.Bytes()})
	}
	return a.finish(r, err, true)
}

func (a *App) report(ctx *cli.Context) error {
	format, err := inputFormat(ctx)
	if err != nil {
		return err
	}

	color := !ctx.Bool("no-color")
	if f, ok := ctx.App.Writer.(*os.File); !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		color = false
	}

	reporter := result.NewReporter(ctx.App.Writer, color)
	r, err := a.consume(ctx, model.HistoryTypeReport, format, reporter)
	return a.finish(r, err, true)
}

func (a *App) profile(ctx *cli.Context) error {
	format, err := inputFormat(ctx)
	if err != nil {
		return err
	}

	r, err := a.consume(ctx, model.HistoryTypeStats, format, result.Discard)
	if err != nil {
		return a.finish(r, err, false)
	}

	w, closeOutput, err := outputWriter(ctx)
	if err != nil {
		return a.finish(r, err, false)
	}

	err = r.timing.Write(w)
	if cerr := closeOutput(); err == nil {
		err = cerr
	}
	if err != nil {
		return a.finish(r, err, false)
	}
	a.logger.Info().Str("output", ctx.String("output")).Int("samples", len(r.timing.Profile().Sample)).Msg("Wrote timing profile")
	return a.finish(r, nil, false)
}
