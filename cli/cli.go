package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/perfgo/subunit/config"
)

const AppName = "subunit"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
	cfg    config.Config
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
			NoColor:    !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()),
		})

	app := &App{
		logger: logger,
	}
	app.cli = &cli.App{
		Name:  AppName,
		Usage: "Process subunit test result streams",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose (debug) logging",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to the configuration file (default: $SUBUNIT_CONFIG or .subunit.yaml)",
			},
			&cli.BoolFlag{
				Name:  "record",
				Usage: "Record a history entry for every processed stream",
			},
			&cli.StringFlag{
				Name:  "history-dir",
				Usage: "Directory of history entries (default: .subunit/history in the repository root)",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "How v1 directives that do not fit the parser state are handled: lenient, legacy or strict",
			},
			&cli.StringFlag{
				Name:  "non-subunit-name",
				Usage: "File name given to non-subunit bytes",
			},
		},
		Before: app.before,
	}

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "filter",
		Usage:     "Filter a stream by outcome, test id, details or tags",
		ArgsUsage: "[FILE...]",
		Action:    app.filter,
		Flags: append(streamFlags(),
			&cli.BoolFlag{
				Name:    "success",
				Aliases: []string{"s"},
				Usage:   "Include successes",
			},
			&cli.BoolFlag{
				Name:  "no-passthrough",
				Usage: "Hide all non subunit input",
			},
			&cli.BoolFlag{
				Name:    "no-error",
				Aliases: []string{"E"},
				Usage:   "Exclude errors",
			},
			&cli.BoolFlag{
				Name:    "no-failure",
				Aliases: []string{"f"},
				Usage:   "Exclude failures",
			},
			&cli.BoolFlag{
				Name:  "no-skip",
				Usage: "Exclude skips",
			},
			&cli.BoolFlag{
				Name:  "no-xfail",
				Usage: "Exclude expected failures",
			},
			&cli.BoolFlag{
				Name:    "only-genuine-failures",
				Aliases: []string{"F"},
				Usage:   "Only pass through failures and errors",
			},
			&cli.StringFlag{
				Name:  "fixup-expected-failures",
				Usage: "File with one test id per line whose failures are expected",
			},
			&cli.StringSliceFlag{
				Name:  "with",
				Usage: "Regexp to include (matched against test id and details)",
			},
			&cli.StringSliceFlag{
				Name:  "without",
				Usage: "Regexp to exclude (matched against test id and details)",
			},
			&cli.StringSliceFlag{
				Name:  "with-tag",
				Usage: "Include tests carrying the tag",
			},
			&cli.StringSliceFlag{
				Name:  "without-tag",
				Usage: "Exclude tests carrying the tag",
			},
			&cli.StringFlag{
				Name:  "route-code",
				Usage: "Only keep events of the given route code prefix, stripping it",
			},
			outputFormatFlag(),
		),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "stats",
		Usage:     "Print the outcome counts of a stream",
		ArgsUsage: "[FILE...]",
		Action:    app.stats,
		Flags:     streamFlags(),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List the tests of a stream",
		ArgsUsage: "[FILE...]",
		Action:    app.ls,
		Flags: append(streamFlags(),
			&cli.BoolFlag{
				Name:  "times",
				Usage: "Show the duration of each test",
			},
			&cli.BoolFlag{
				Name:  "exists",
				Usage: "Also list tests that were only enumerated",
			},
			&cli.BoolFlag{
				Name:  "no-passthrough",
				Usage: "Hide all non subunit input",
			},
			&cli.BoolFlag{
				Name:  "shell",
				Usage: "Quote test ids for pasting into a shell",
			},
		),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "tags",
		Usage:     "Add or remove tags on every test of a v2 stream",
		ArgsUsage: "TAG|-TAG...",
		Action:    app.tags,
		// removals look like flags
		SkipFlagParsing: true,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "1to2",
		Usage:     "Convert a v1 stream to v2",
		ArgsUsage: "[FILE...]",
		Action:    app.oneToTwo,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "2to1",
		Usage:     "Convert a v2 stream to v1",
		ArgsUsage: "[FILE...]",
		Action:    app.twoToOne,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "output",
		Usage:  "Write a v2 stream reporting one test status or attachment",
		Action: app.output,
		Flags:  outputFlags(),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "csv",
		Usage:     "Write one row per test as CSV or XLSX",
		ArgsUsage: "[FILE...]",
		Action:    app.csv,
		Flags: append(streamFlags(),
			&cli.BoolFlag{
				Name:  "xlsx",
				Usage: "Write an Excel workbook instead of CSV",
			},
			outputFileFlag(""),
		),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "report",
		Usage:     "Print a human readable report of a stream",
		ArgsUsage: "[FILE...]",
		Action:    app.report,
		Flags: append(streamFlags(),
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colors",
			},
		),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "profile",
		Usage:     "Write a pprof profile of test durations",
		ArgsUsage: "[FILE...]",
		Action:    app.profile,
		Flags: append(streamFlags(),
			outputFileFlag("timing.pb.gz"),
			&cli.StringFlag{
				Name:  "separators",
				Usage: "Characters splitting test ids into stack frames",
			},
		),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List previously processed streams",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "Filter by working directory (substring match)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "view",
		Usage:           "View a processed stream from history",
		ArgsUsage:       "[ID|INDEX]",
		Action:          app.view,
		SkipFlagParsing: true,
		Description: `View a processed stream from history.

Arguments:
  0           View last entry (default)
  -1          View 2nd last entry
  -2          View 3rd last entry
  <hex-id>    View entry matching the hex ID prefix

Examples:
  subunit view                   # View last entry
  subunit view -1                # View 2nd last entry
  subunit view abc123 -top       # Show the top tests of entry abc123

Display Priority:
  1. Timing profiles (timing.pb.gz), opened with go tool pprof
  2. CSV results
  3. Summary only`,
	})
	return app
}

func (a *App) before(ctx *cli.Context) error {
	if ctx.Bool("verbose") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}

	// flags override the file and the environment
	if ctx.IsSet("record") {
		record := ctx.Bool("record")
		cfg.Record = &record
	}
	if ctx.IsSet("history-dir") {
		cfg.HistoryDir = ctx.String("history-dir")
	}
	if ctx.IsSet("mode") {
		cfg.Mode = ctx.String("mode")
	}
	if ctx.IsSet("non-subunit-name") {
		cfg.NonSubunitName = ctx.String("non-subunit-name")
	}
	a.cfg = cfg

	a.logger.Debug().Str("mode", cfg.Mode).Bool("record", cfg.RecordEnabled()).Msg("Loaded configuration")
	return nil
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}
