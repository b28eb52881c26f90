package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gostdlib/base/context"
	"github.com/spf13/cobra"

	"github.com/bearlytools/xrtipc/internal/config"
	"github.com/bearlytools/xrtipc/internal/logging"
	"github.com/bearlytools/xrtipc/internal/metrics"
	"github.com/bearlytools/xrtipc/ipc/server"
	"github.com/bearlytools/xrtipc/ipc/transport"
	"github.com/bearlytools/xrtipc/ipc/transport/handoff"
	"github.com/bearlytools/xrtipc/ipc/transport/unix"
	"github.com/bearlytools/xrtipc/xrt/mock"
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "xrtipc-server",
	Short: "XR runtime session broker",
	Long: `xrtipc-server owns the devices and the system compositor and brokers sessions for
XR applications connecting over a local socket.`,
	SilenceUsage: true,
	RunE:         run,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	f := rootCmd.Flags()
	f.StringP("config", "c", "", "config file")
	f.String("socket-path", "", "socket to listen on")
	f.String("acceptor", "", "how clients connect: socket or handoff")
	f.Duration("poll-interval", 0, "how long loops block before checking for shutdown")
	f.Bool("exit-on-disconnect", false, "stop when any client disconnects")
	f.String("log-level", "", "trace, debug, info, warn or error")
	f.String("log-format", "", "text or json")
	f.String("metrics-addr", "", "address to serve /metrics on, empty disables it")
	f.StringSlice("devices", nil, "simulated devices: hmd, left, right")

	for key, flag := range map[string]string{
		"socket_path":        "socket-path",
		"acceptor":           "acceptor",
		"poll_interval":      "poll-interval",
		"exit_on_disconnect": "exit-on-disconnect",
		"log_level":          "log-level",
		"log_format":         "log-format",
		"metrics_addr":       "metrics-addr",
		"devices":            "devices",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if err := config.ReadFile(v, cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	log := logging.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := server.AcquireLock(cfg.LockPath, log)
	if err != nil {
		return err
	}
	defer lock.Release()

	m, shutdownMetrics, err := startMetrics(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer shutdownMetrics()

	devices, err := buildDevices(cfg.Devices)
	if err != nil {
		return err
	}

	acc, err := newAcceptor(ctx, cfg, log)
	if err != nil {
		return err
	}

	srv, err := server.New(ctx, acc, mock.NewSystem(), devices,
		server.WithLogger(log),
		server.WithMetrics(m),
		server.WithPollInterval(cfg.PollInterval),
		server.WithExitOnDisconnect(cfg.ExitOnDisconnect),
	)
	if err != nil {
		acc.Close()
		return err
	}

	log.Info("listening", "socket", cfg.SocketPath, "acceptor", cfg.Acceptor)
	return srv.Run(ctx)
}

// startMetrics serves the Prometheus endpoint when an address is configured. Without one the
// instruments go to the context's meter.
func startMetrics(ctx context.Context, cfg *config.Config, log *logging.Logger) (*metrics.Metrics, func(), error) {
	if cfg.MetricsAddr == "" {
		m, err := metrics.New(ctx, nil)
		return m, func() {}, err
	}

	mp, reg, err := metrics.NewProvider()
	if err != nil {
		return nil, nil, fmt.Errorf("creating meter provider: %w", err)
	}
	m, err := metrics.New(ctx, mp)
	if err != nil {
		return nil, nil, err
	}
	ms, err := metrics.Listen(cfg.MetricsAddr, reg)
	if err != nil {
		return nil, nil, err
	}
	context.Pool(ctx).Submit(ctx, func() {
		if err := ms.Serve(); err != nil {
			log.Error("metrics server stopped", "err", err)
		}
	})
	log.Info("serving metrics", "addr", ms.Addr().String())

	return m, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ms.Shutdown(sctx)
		mp.Shutdown(sctx)
	}, nil
}

func newAcceptor(ctx context.Context, cfg *config.Config, log *logging.Logger) (transport.Acceptor, error) {
	switch cfg.Acceptor {
	case config.AcceptorHandoff:
		acc := handoff.New(cfg.PollInterval)
		if err := launch(ctx, cfg.SocketPath, acc, log); err != nil {
			return nil, err
		}
		return acc, nil
	default:
		acc, err := unix.Listen(ctx, cfg.SocketPath, unix.WithPollInterval(cfg.PollInterval))
		if err != nil {
			return nil, err
		}
		if acc.Activated() {
			log.Info("using socket from systemd")
		}
		return acc, nil
	}
}
