package cli

// This file contains the output command, which writes a v2 stream
// describing a single test status or file attachment.

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/subunit/model"
	v2 "github.com/perfgo/subunit/protocol/v2"
)

// statusFlags maps each status flag of the output command to its outcome.
var statusFlags = []struct {
	name    string
	aliases []string
	outcome model.Outcome
	usage   string
}{
	{name: "inprogress", aliases: []string{"start"}, outcome: model.InProgress, usage: "Report that TEST_ID has started"},
	{name: "exists", outcome: model.Exists, usage: "Report that TEST_ID exists"},
	{name: "success", aliases: []string{"pass"}, outcome: model.Success, usage: "Report that TEST_ID passed"},
	{name: "fail", outcome: model.Failure, usage: "Report that TEST_ID failed"},
	{name: "skip", outcome: model.Skip, usage: "Report that TEST_ID was skipped"},
	{name: "xfail", aliases: []string{"expected-fail"}, outcome: model.XFail, usage: "Report that TEST_ID failed as expected"},
	{name: "uxsuccess", aliases: []string{"unexpected-success"}, outcome: model.UxSuccess, usage: "Report that TEST_ID passed unexpectedly"},
}

func outputFlags() []cli.Flag {
	var flags []cli.Flag
	for _, s := range statusFlags {
		flags = append(flags, &cli.StringFlag{
			Name:    s.name,
			Aliases: s.aliases,
			Usage:   s.usage,
		})
	}
	return append(flags,
		&cli.StringFlag{
			Name:  "attach-file",
			Usage: "Attach the content of this file (- for stdin)",
		},
		&cli.StringFlag{
			Name:  "file-name",
			Usage: "Name of the attachment (default: the attached path)",
		},
		&cli.StringFlag{
			Name:  "mimetype",
			Usage: "MIME type of the attachment",
		},
		&cli.StringSliceFlag{
			Name:  "tag",
			Usage: "Tag the test status (repeatable)",
		},
	)
}

// outputRequest is what the output command was asked to emit.
type outputRequest struct {
	testID      string
	outcome     model.Outcome
	hasStatus   bool
	tags        []string
	file        *model.File
	contentType model.ContentType
}

func (a *App) parseOutputRequest(ctx *cli.Context) (*outputRequest, error) {
	req := &outputRequest{tags: ctx.StringSlice("tag")}
	for _, s := range statusFlags {
		if !ctx.IsSet(s.name) {
			continue
		}
		if req.hasStatus {
			return nil, errors.New("only one test status may be given")
		}
		req.testID, req.outcome, req.hasStatus = ctx.String(s.name), s.outcome, true
		if req.testID == "" {
			return nil, fmt.Errorf("--%s needs a test id", s.name)
		}
	}
	if len(req.tags) > 0 && !req.hasStatus {
		return nil, errors.New("--tag needs a test status")
	}

	if mime := ctx.String("mimetype"); mime != "" {
		ct, err := model.ParseContentType(mime)
		if err != nil {
			return nil, err
		}
		req.contentType = ct
	}

	path := ctx.String("attach-file")
	if path == "" {
		if !req.hasStatus {
			return nil, errors.New("nothing to output: give a test status or --attach-file")
		}
		return req, nil
	}

	var data []byte
	var err error
	name := path
	if path == "-" {
		name = "stdin"
		data, err = io.ReadAll(ctx.App.Reader)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	if fileName := ctx.String("file-name"); fileName != "" {
		name = fileName
	}
	req.file = &model.File{TestID: req.testID, Name: name, ContentType: req.contentType, Data: data, EOF: true}
	return req, nil
}

func (a *App) output(ctx *cli.Context) error {
	req, err := a.parseOutputRequest(ctx)
	if err != nil {
		return err
	}

	w := v2.NewWriter(ctx.App.Writer, v2.WithLogger(a.logger), v2.WithNonSubunitName(a.nonSubunitName()))
	if err := w.StartTestRun(); err != nil {
		return err
	}
	if err := w.Time(time.Now()); err != nil {
		return err
	}

	switch {
	case !req.hasStatus:
		// a bare attachment, optionally bound to no test at all
		err = w.File(*req.file)
	case req.outcome == model.InProgress:
		if err = w.Tags(req.tags, nil); err == nil {
			err = w.StartTest(req.testID)
		}
		if err == nil && req.file != nil {
			err = w.File(*req.file)
		}
	default:
		r := model.Result{TestID: req.testID, Outcome: req.outcome, Tags: req.tags}
		if req.file != nil {
			r.Details = model.Details{req.file.Name: {ContentType: req.contentType, Data: req.file.Data}}
		}
		err = w.AddOutcome(r)
	}
	if err != nil {
		return fmt.Errorf("failed to write stream: %w", err)
	}

	a.logger.Debug().Str("test", req.testID).Stringer("outcome", req.outcome).Bool("status", req.hasStatus).Msg("Wrote stream")
	return w.StopTestRun()
}
