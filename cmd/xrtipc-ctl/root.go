package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gostdlib/base/context"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/bearlytools/xrtipc/internal/config"
	"github.com/bearlytools/xrtipc/ipc/client"
	"github.com/bearlytools/xrtipc/ipc/protocol"
)

var (
	socketPath string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "xrtipc-ctl",
	Short:        "Inspect and steer a running xrtipc-server",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&socketPath, "socket", "s", config.Default().SocketPath, "server socket")
	pf.DurationVar(&timeout, "timeout", 5*time.Second, "how long to wait for the server")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List connected clients",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClient(cmd, func(ctx context.Context, c *client.Client) error {
					return list(ctx, c, cmd.OutOrStdout())
				})
			},
		},
		idCommand("primary <id>", "Make a client the primary application", (*client.Client).SetPrimaryClient),
		idCommand("focused <id>", "Set the focused client", (*client.Client).SetFocusedClient),
		idCommand("toggle-io <id>", "Toggle input and output for a client", (*client.Client).ToggleIOClient),
		&cobra.Command{
			Use:   "toggle-device <id>",
			Short: "Toggle input and output for a device",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("bad device id %q: %w", args[0], err)
				}
				return withClient(cmd, func(ctx context.Context, c *client.Client) error {
					return c.ToggleIODevice(ctx, uint32(id))
				})
			},
		},
	)
}

func idCommand(use, short string, fn func(*client.Client, context.Context, int32) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("bad client id %q: %w", args[0], err)
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				return fn(c, ctx, int32(id))
			})
		},
	}
}

// withClient connects to the server, announces this tool and runs fn.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	c, err := client.Dial(ctx, socketPath, client.WithDialTimeout(timeout))
	if err != nil {
		return err
	}
	defer c.Close()

	desc := protocol.ClientDescription{ApplicationName: "xrtipc-ctl", PID: int32(os.Getpid())}
	if err := c.DescribeClient(ctx, desc); err != nil {
		return err
	}
	return fn(ctx, c)
}

func list(ctx context.Context, c *client.Client, w io.Writer) error {
	ids, err := c.Clients(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Application", "PID", "Primary", "Active", "Visible", "Focused", "Overlay", "Z", "IO"})
	for _, id := range ids {
		info, err := c.ClientInfo(ctx, id)
		if err != nil {
			// The client may have left between the two calls.
			continue
		}
		z := "-"
		if info.SessionOverlay {
			z = strconv.FormatInt(info.ZOrder, 10)
		}
		t.AppendRow(table.Row{
			id, info.ApplicationName, info.PID, info.PrimaryApplication, info.SessionActive,
			info.SessionVisible, info.SessionFocused, info.SessionOverlay, z, info.IOActive,
		})
	}
	t.Render()
	return nil
}
