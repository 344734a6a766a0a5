// Package cli contains the cogs command line tool for inspecting and editing point cloud files.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	flagConfig  = "config"
	flagDebug   = "debug"
	flagLogFile = "log-file"
	flagMetrics = "metrics"

	// Command flags.
	flagCenter    = "center"
	flagRadius    = "radius"
	flagMin       = "min"
	flagMax       = "max"
	flagOrigin    = "origin"
	flagDirection = "direction"
	flagTolerance = "tolerance"
	flagOutside   = "outside"
	flagOutput    = "output"
	flagCheck     = "check"
)

func boxFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64SliceFlag{
			Name:     flagMin,
			Required: true,
			Usage:    "minimum corner of the box as `X,Y,Z`",
		},
		&cli.Float64SliceFlag{
			Name:     flagMax,
			Required: true,
			Usage:    "maximum corner of the box as `X,Y,Z`",
		},
	}
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Writer:          out,
		ErrWriter:       errOut,
		Name:            "cogs",
		Usage:           "inspect, query and edit point cloud files",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.PathFlag{
				Name:  flagLogFile,
				Usage: "also write logs to the rotated `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagMetrics,
				Usage: "print index metrics in prometheus text format after the command",
			},
		},
		After: MetricsAction,
		Commands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "print the size, properties and statistics of a cloud",
				ArgsUsage: "<file>",
				Action:    InfoAction,
			},
			{
				Name:      "find",
				Usage:     "list the points within a radius of a center or inside a box",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.Float64SliceFlag{
						Name:  flagCenter,
						Usage: "center of the sphere as `X,Y,Z`",
					},
					&cli.Float64Flag{
						Name:  flagRadius,
						Usage: "radius of the sphere",
					},
					&cli.Float64SliceFlag{
						Name:  flagMin,
						Usage: "minimum corner of the box as `X,Y,Z`",
					},
					&cli.Float64SliceFlag{
						Name:  flagMax,
						Usage: "maximum corner of the box as `X,Y,Z`",
					},
				},
				Action: FindAction,
			},
			{
				Name:      "pick",
				Usage:     "select the point hit by a ray and optionally its neighborhood",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.Float64SliceFlag{
						Name:     flagOrigin,
						Required: true,
						Usage:    "ray origin as `X,Y,Z`",
					},
					&cli.Float64SliceFlag{
						Name:     flagDirection,
						Required: true,
						Usage:    "ray direction as `X,Y,Z`",
					},
					&cli.Float64Flag{
						Name:  flagTolerance,
						Usage: "maximum distance between ray and point, 0 picks automatically",
					},
					&cli.Float64Flag{
						Name:  flagRadius,
						Usage: "also select the points within this distance of the hit point",
					},
				},
				Action: PickAction,
			},
			{
				Name:      "range",
				Usage:     "count the points inside a box using a k-d tree",
				ArgsUsage: "<file>",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  flagCheck,
						Usage: "verify the result against an octree",
					},
				}, boxFlags()...),
				Action: RangeAction,
			},
			{
				Name:      "erase",
				Usage:     "remove the points inside a box and write the result",
				ArgsUsage: "<file>",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  flagOutside,
						Usage: "remove the points outside the box instead",
					},
					&cli.PathFlag{
						Name:     flagOutput,
						Aliases:  []string{"o"},
						Required: true,
						Usage:    "write the result to `FILE` (.pcd or .las)",
					},
				}, boxFlags()...),
				Action: EraseAction,
			},
			{
				Name:   "schema",
				Usage:  "print the JSON schema of the config file",
				Action: SchemaAction,
			},
		},
	}
}
