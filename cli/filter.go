package cli

// This file contains the filter command.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/subunit/history"
	"github.com/perfgo/subunit/model"
	v1 "github.com/perfgo/subunit/protocol/v1"
	v2 "github.com/perfgo/subunit/protocol/v2"
	"github.com/perfgo/subunit/result"
)

// readTestList reads one test id per line. Blank lines and lines starting
// with # are skipped.
func readTestList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open test list: %w", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read test list: %w", err)
	}
	return ids, nil
}

func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, expr := range exprs {
		re, err := regexp.Compile("(?m)" + expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (a *App) filterOptions(ctx *cli.Context) ([]result.FilterOption, error) {
	genuine := ctx.Bool("only-genuine-failures")
	opts := []result.FilterOption{
		result.WithExclude(model.Success, genuine || !ctx.Bool("success")),
		result.WithExclude(model.Skip, genuine || ctx.Bool("no-skip")),
		result.WithExclude(model.XFail, genuine || ctx.Bool("no-xfail")),
		result.WithExclude(model.Error, ctx.Bool("no-error")),
		result.WithExclude(model.Failure, ctx.Bool("no-failure")),
	}

	with, err := compileAll(ctx.StringSlice("with"))
	if err != nil {
		return nil, err
	}
	without, err := compileAll(ctx.StringSlice("without"))
	if err != nil {
		return nil, err
	}
	if len(with) > 0 || len(without) > 0 {
		opts = append(opts, result.WithPredicate(result.RegexpPredicate(with, without)))
	}

	withTags, withoutTags := ctx.StringSlice("with-tag"), ctx.StringSlice("without-tag")
	if len(withTags) > 0 || len(withoutTags) > 0 {
		opts = append(opts, result.WithPredicate(result.TagPredicate(withTags, withoutTags)))
	}

	expected := a.cfg.ExpectedFailures
	if path := ctx.String("fixup-expected-failures"); path != "" {
		ids, err := readTestList(path)
		if err != nil {
			return nil, err
		}
		expected = append(expected, ids...)
	}
	if len(expected) > 0 {
		opts = append(opts, result.WithFixupExpectedFailures(expected))
	}
	return opts, nil
}

// encoder returns the sink writing the given output protocol to w.
func (a *App) encoder(w io.Writer, format string) result.Sink {
	if format == formatV1 {
		return v1.NewClient(w)
	}
	return v2.NewWriter(w, v2.WithLogger(a.logger), v2.WithNonSubunitName(a.nonSubunitName()))
}

func (a *App) filter(ctx *cli.Context) error {
	in, err := parseFormat(ctx.String("input-format"), true)
	if err != nil {
		return err
	}
	out, err := parseFormat(ctx.String("output-format"), false)
	if err != nil {
		return err
	}
	opts, err := a.filterOptions(ctx)
	if err != nil {
		return err
	}

	// keep a copy of the filtered stream for the history record
	var w io.Writer = ctx.App.Writer
	var recorded bytes.Buffer
	if a.cfg.RecordEnabled() {
		w = io.MultiWriter(w, &recorded)
	}

	var sink result.Sink = result.NewFilter(a.encoder(w, out), opts...)
	if ctx.Bool("no-passthrough") || ctx.Bool("only-genuine-failures") {
		sink = result.DropPassthrough{Sink: sink}
	}
	if prefix := ctx.String("route-code"); prefix != "" {
		router := result.NewRouter(result.Discard)
		router.AddRule(sink, result.MatchRouteCodePrefix(prefix, true))
		sink = router
	}

	r, err := a.consume(ctx, model.HistoryTypeFilter, in, sink)
	if err == nil && recorded.Len() > 0 {
		r.artifacts = append(r.artifacts, history.ArtifactFile{
			Type: model.ArtifactTypeStream,
			Name: "filtered." + out + ".subunit",
			Data: recorded.Bytes(),
		})
	}
	return a.finish(r, err, false)
}
