package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"securecast/internal/app"
	"securecast/internal/domain"
)

var (
	home       string
	configPath string
	verbose    bool
	appCtx     *app.App

	// flagCfg receives flag values; only flags set on the command line are
	// copied over the loaded config.
	flagCfg   app.Config
	flagDur   durations
	groupFlag string
)

type durations struct {
	repairWindow     time.Duration
	startDelay       time.Duration
	idleTimeout      time.Duration
	repairRetryDelay time.Duration
}

// overrides maps a flag name to the config field it sets.
var overrides = map[string]func(dst *app.Config){
	"group-name":         func(c *app.Config) { c.GroupName = flagCfg.GroupName },
	"interface":          func(c *app.Config) { c.Interface = flagCfg.Interface },
	"ttl":                func(c *app.Config) { c.TTL = flagCfg.TTL },
	"no-loopback":        func(c *app.Config) { c.DisableLoopback = flagCfg.DisableLoopback },
	"integrity":          func(c *app.Config) { c.Integrity = flagCfg.Integrity },
	"handshake-port":     func(c *app.Config) { c.HandshakePort = flagCfg.HandshakePort },
	"repair-port":        func(c *app.Config) { c.RepairPort = flagCfg.RepairPort },
	"repair-framing":     func(c *app.Config) { c.RepairFraming = flagCfg.RepairFraming },
	"repair-mode":        func(c *app.Config) { c.RepairMode = flagCfg.RepairMode },
	"repair-window":      func(c *app.Config) { c.RepairWindow = app.Duration(flagDur.repairWindow) },
	"chunk-size":         func(c *app.Config) { c.ChunkSize = flagCfg.ChunkSize },
	"rate":               func(c *app.Config) { c.Rate = flagCfg.Rate },
	"burst":              func(c *app.Config) { c.Burst = flagCfg.Burst },
	"announce-total":     func(c *app.Config) { c.AnnounceTotal = flagCfg.AnnounceTotal },
	"repeat-metadata":    func(c *app.Config) { c.RepeatMetadata = flagCfg.RepeatMetadata },
	"start-delay":        func(c *app.Config) { c.StartDelay = app.Duration(flagDur.startDelay) },
	"spool":              func(c *app.Config) { c.Spool = flagCfg.Spool },
	"output":             func(c *app.Config) { c.OutputDir = flagCfg.OutputDir },
	"idle-timeout":       func(c *app.Config) { c.IdleTimeout = app.Duration(flagDur.idleTimeout) },
	"repair-retries":     func(c *app.Config) { c.RepairRetries = flagCfg.RepairRetries },
	"repair-retry-delay": func(c *app.Config) { c.RepairRetryDelay = app.Duration(flagDur.repairRetryDelay) },
	"repair-rounds":      func(c *app.Config) { c.RepairRounds = flagCfg.RepairRounds },
}

func Execute() error {
	root := &cobra.Command{
		Use:           "securecast",
		Short:         "Encrypted multicast file transfer with TCP repair",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".securecast")
			}
			if configPath == "" {
				configPath = filepath.Join(home, "config.json")
			}

			cfg, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}
			cfg.Home = home
			cmd.Flags().Visit(func(f *pflag.Flag) {
				if apply, ok := overrides[f.Name]; ok {
					apply(&cfg)
				}
			})
			if groupFlag != "" {
				ep, err := domain.ParseEndpoint(groupFlag)
				if err != nil {
					return err
				}
				cfg.Group = ep
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(log)

			appCtx, err = app.New(cfg, log)
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&home, "home", "", "config dir (default ~/.securecast)")
	pf.StringVar(&configPath, "config", "", "JSON config file (default <home>/config.json)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&groupFlag, "group", "", "multicast group host:port (default 224.1.1.1:5007)")
	pf.StringVar(&flagCfg.Interface, "interface", "", "network interface for multicast")
	pf.StringVar(&flagCfg.Integrity, "integrity", "digest", "packet tag: digest or keyed (both sides must agree)")
	pf.IntVar(&flagCfg.RepairPort, "repair-port", app.DefaultRepairPort, "repair TCP port")
	pf.StringVar(&flagCfg.RepairFraming, "repair-framing", "framed", "repair replies: framed or unframed")
	pf.IntVar(&flagCfg.HandshakePort, "handshake-port", app.DefaultHandshakePort, "handshake TCP port")

	root.AddCommand(sendCmd(), recvCmd(), serveRepairCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return root.ExecuteContext(ctx)
}
