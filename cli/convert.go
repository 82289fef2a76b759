package cli

// This file contains the commands converting between protocol versions
// and rewriting tags.

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/subunit/model"
	v1 "github.com/perfgo/subunit/protocol/v1"
	v2 "github.com/perfgo/subunit/protocol/v2"
)

func (a *App) oneToTwo(ctx *cli.Context) error {
	out := v2.NewWriter(ctx.App.Writer, v2.WithLogger(a.logger), v2.WithNonSubunitName(a.nonSubunitName()))
	r, err := a.consume(ctx, model.HistoryTypeConvert, formatV1, out)
	return a.finish(r, err, false)
}

func (a *App) twoToOne(ctx *cli.Context) error {
	r, err := a.consume(ctx, model.HistoryTypeConvert, formatV2, v1.NewClient(ctx.App.Writer))
	return a.finish(r, err, false)
}

func (a *App) tags(ctx *cli.Context) error {
	gained, lost := model.ParseTagArgs(ctx.Args().Slice())
	a.logger.Debug().Strs("gained", gained).Strs("lost", lost).Msg("Rewriting tags")
	if err := v2.RewriteTags(ctx.App.Reader, ctx.App.Writer, gained, lost); err != nil {
		return fmt.Errorf("failed to rewrite tags: %w", err)
	}
	return nil
}
