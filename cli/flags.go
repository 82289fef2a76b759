package cli

// This file contains flag factories shared by the stream commands.

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const (
	formatAuto = "auto"
	formatV1   = "v1"
	formatV2   = "v2"
)

// streamFlags returns the flags of every command reading a stream.
func streamFlags() []cli.Flag {
	return []cli.Flag{InputFormatFlag()}
}

// InputFormatFlag returns the flag selecting the input protocol.
func InputFormatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "input-format",
		Aliases: []string{"i"},
		Usage:   "Input protocol: auto, v1 or v2 (auto picks v2 when the stream starts with a packet)",
		Value:   formatAuto,
	}
}

func outputFormatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "output-format",
		Usage: "Output protocol: v1 or v2",
		Value: formatV2,
	}
}

func outputFileFlag(value string) cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write to this file instead of stdout",
		Value:   value,
	}
}

func parseFormat(name string, allowAuto bool) (string, error) {
	switch name {
	case "":
		if allowAuto {
			return formatAuto, nil
		}
	case formatAuto:
		if allowAuto {
			return formatAuto, nil
		}
	case formatV1, formatV2:
		return name, nil
	}
	return "", fmt.Errorf("unknown protocol format %q", name)
}
