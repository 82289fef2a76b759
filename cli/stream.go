package cli

// This file contains the plumbing shared by commands that consume a
// stream: opening inputs, picking the decoder and recording the run.

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/subunit/history"
	"github.com/perfgo/subunit/model"
	v1 "github.com/perfgo/subunit/protocol/v1"
	v2 "github.com/perfgo/subunit/protocol/v2"
	"github.com/perfgo/subunit/result"
	"github.com/perfgo/subunit/timing"
)

// run collects what a command learned from its input.
type run struct {
	history   *model.History
	stats     *result.Stats
	summary   *result.Summary
	timing    *timing.Builder
	artifacts []history.ArtifactFile
}

func (a *App) nonSubunitName() string {
	if a.cfg.NonSubunitName != "" {
		return a.cfg.NonSubunitName
	}
	return v2.DefaultNonSubunitName
}

func (a *App) timingOptions(ctx *cli.Context) []timing.Option {
	if ctx.IsSet("separators") {
		return []timing.Option{timing.WithSeparators(ctx.String("separators"))}
	}
	if a.cfg.Separators != nil {
		return []timing.Option{timing.WithSeparators(*a.cfg.Separators)}
	}
	return nil
}

// forEachInput calls fn for every file argument, or once for stdin when
// there are none. "-" also names stdin.
func (a *App) forEachInput(ctx *cli.Context, fn func(name string, r io.Reader) error) error {
	names := ctx.Args().Slice()
	if len(names) == 0 {
		names = []string{"-"}
	}
	for _, name := range names {
		if name == "-" {
			if err := fn("stdin", ctx.App.Reader); err != nil {
				return err
			}
			continue
		}
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		err = fn(name, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// decode feeds one stream to sink. Non-protocol bytes reach the sink as
// File calls for both protocol versions.
func (a *App) decode(r io.Reader, sink result.Sink, format string) error {
	br := bufio.NewReader(r)
	if format == formatAuto {
		format = formatV1
		if b, err := br.Peek(1); err == nil && b[0] == v2.Signature {
			format = formatV2
		}
	}

	if format == formatV2 {
		return v2.NewDecoder(br, sink,
			v2.WithLogger(a.logger),
			v2.WithNonSubunitName(a.nonSubunitName()),
		).Run()
	}

	mode, err := v1.ParseMode(a.cfg.Mode)
	if err != nil {
		return err
	}
	server := v1.NewServer(sink,
		v1.WithLogger(a.logger),
		v1.WithMode(mode),
		v1.WithPassthrough(result.Passthrough{Sink: sink, Name: a.nonSubunitName()}),
	)
	return server.Run(br)
}

// consume decodes every input into sink inside a single test run. Counts
// and timings are gathered alongside for the history record.
func (a *App) consume(ctx *cli.Context, typ model.HistoryType, format string, sink result.Sink) (*run, error) {
	r := &run{
		history: &model.History{
			ID:        history.NewID(),
			Type:      typ,
			Timestamp: time.Now(),
			Args:      os.Args,
		},
		stats:   result.NewStats(),
		summary: &result.Summary{},
		timing:  timing.New(a.timingOptions(ctx)...),
	}

	all := result.Tee{sink, r.stats, r.summary, r.timing}
	if err := all.StartTestRun(); err != nil {
		return r, err
	}
	err := a.forEachInput(ctx, func(name string, in io.Reader) error {
		a.logger.Debug().Str("input", name).Str("format", format).Msg("Reading stream")
		if err := a.decode(in, all, format); err != nil {
			return fmt.Errorf("failed to decode %s: %w", name, err)
		}
		return nil
	})
	if serr := all.StopTestRun(); err == nil {
		err = serr
	}
	return r, err
}

// finish records the run when enabled and maps the outcome to the exit
// status. With failOnUnsuccessful an unsuccessful stream exits 1.
func (a *App) finish(r *run, procErr error, failOnUnsuccessful bool) error {
	exitCode := 0
	if procErr != nil || (failOnUnsuccessful && !r.summary.Successful()) {
		exitCode = 1
	}

	if a.cfg.RecordEnabled() {
		if err := a.recordHistory(r, exitCode); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to record history")
		}
	}

	if procErr != nil {
		return procErr
	}
	if exitCode != 0 {
		return cli.Exit("", exitCode)
	}
	return nil
}

// outputWriter returns the --output file, or the app writer when unset.
// The returned close function must always be called.
func outputWriter(ctx *cli.Context) (io.Writer, func() error, error) {
	path := ctx.String("output")
	if path == "" || path == "-" {
		return ctx.App.Writer, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output: %w", err)
	}
	return f, f.Close, nil
}
