package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mwantia/secstore"
	"github.com/urfave/cli/v3"
)

func (a *app) putCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "Store a file (or stdin) at a path",
		ArgsUsage: "<path> [file]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}

			var (
				content []byte
				err     error
			)
			if file := cmd.Args().Get(1); file != "" && file != "-" {
				content, err = os.ReadFile(file)
			} else {
				content, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return err
			}

			return a.withEngine(ctx, func(engine *secstore.Engine) error {
				return engine.Write(ctx, cmd.Args().Get(0), content)
			})
		},
	}
}

func (a *app) getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Write the item at a path to stdout",
		ArgsUsage: "<path>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}

			return a.withReadOnlyEngine(ctx, func(engine *secstore.Engine) error {
				path := cmd.Args().Get(0)

				size, err := engine.GetSize(ctx, path)
				if err != nil {
					return err
				}

				buf := make([]byte, size)
				n, err := engine.Read(ctx, path, buf)
				if err != nil {
					return err
				}

				_, err = os.Stdout.Write(buf[:n])
				return err
			})
		},
	}
}

func (a *app) rmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete an item or a whole subtree",
		ArgsUsage: "<path>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}

			return a.withEngine(ctx, func(engine *secstore.Engine) error {
				return engine.Delete(ctx, cmd.Args().Get(0))
			})
		},
	}
}

func (a *app) duCommand() *cli.Command {
	return &cli.Command{
		Name:      "du",
		Usage:     "Print the size of all items at and below a path",
		ArgsUsage: "[path]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().Get(0)
			if path == "" {
				path = "/"
			}

			return a.withReadOnlyEngine(ctx, func(engine *secstore.Engine) error {
				size, err := engine.GetSize(ctx, path)
				if err != nil {
					return err
				}

				fmt.Printf("%d\t%s\n", size, path)
				return nil
			})
		},
	}
}

func (a *app) lsCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List the direct children of a path",
		ArgsUsage: "[path]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().Get(0)
			if path == "" {
				path = "/"
			}

			return a.withReadOnlyEngine(ctx, func(engine *secstore.Engine) error {
				return engine.GetEntries(ctx, path, func(name string) error {
					_, err := fmt.Println(name)
					return err
				})
			})
		},
	}
}

func (a *app) dfCommand() *cli.Command {
	return &cli.Command{
		Name:  "df",
		Usage: "Print total and free space of the storage backend",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.withReadOnlyEngine(ctx, func(engine *secstore.Engine) error {
				total, free, err := engine.GetTotalSpace(ctx)
				if err != nil {
					return err
				}

				fmt.Printf("total\t%d\nused\t%d\nfree\t%d\n", total, total-free, free)
				return nil
			})
		},
	}
}

func (a *app) cpCommand() *cli.Command {
	return &cli.Command{
		Name:      "cp",
		Usage:     "Copy a subtree into an empty destination",
		ArgsUsage: "<src> <dest>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 2); err != nil {
				return err
			}

			return a.withEngine(ctx, func(engine *secstore.Engine) error {
				return engine.Copy(ctx, cmd.Args().Get(1), cmd.Args().Get(0))
			})
		},
	}
}

func (a *app) mvCommand() *cli.Command {
	return &cli.Command{
		Name:      "mv",
		Usage:     "Move a subtree into an empty destination",
		ArgsUsage: "<src> <dest>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 2); err != nil {
				return err
			}

			return a.withEngine(ctx, func(engine *secstore.Engine) error {
				return engine.Move(ctx, cmd.Args().Get(1), cmd.Args().Get(0))
			})
		},
	}
}

func (a *app) exportMetaCommand() *cli.Command {
	return &cli.Command{
		Name:      "export-meta",
		Usage:     "Store a JSON snapshot of the metadata records at a path",
		ArgsUsage: "<path>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}

			return a.withEngine(ctx, func(engine *secstore.Engine) error {
				return engine.CopyMetaTo(ctx, cmd.Args().Get(0))
			})
		},
	}
}

func (a *app) reinitCommand() *cli.Command {
	return &cli.Command{
		Name:  "reinit",
		Usage: "Rebuild the metadata records from the stored items",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.withEngine(ctx, func(engine *secstore.Engine) error {
				if err := engine.ReInitSecStorage(ctx); err != nil {
					return err
				}

				fmt.Printf("%d item(s) tracked\n", engine.Tracker().Len())
				return nil
			})
		},
	}
}

var errDrift = errors.New("metadata drift detected")

func (a *app) verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Compare the metadata records with the stored items",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print drifts as JSON",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().Get(0)
			if path == "" {
				path = "/"
			}

			return a.withEngine(ctx, func(engine *secstore.Engine) error {
				drifts, err := engine.Verify(ctx, path)
				if err != nil {
					return err
				}

				if cmd.Bool("json") {
					encoder := json.NewEncoder(os.Stdout)
					encoder.SetIndent("", "  ")
					if err := encoder.Encode(drifts); err != nil {
						return err
					}
				} else {
					for _, drift := range drifts {
						fmt.Printf("%s\t%s\n", drift.Kind, drift.Path)
					}
				}

				if len(drifts) > 0 {
					return fmt.Errorf("%w: %d difference(s)", errDrift, len(drifts))
				}
				return nil
			})
		},
	}
}
