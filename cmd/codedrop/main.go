package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/rescp17/codedrop/internal/config"
	"github.com/rescp17/codedrop/internal/history"
	"github.com/rescp17/codedrop/internal/startup"
	"github.com/rescp17/codedrop/pkg/discovery"
)

var version = "dev"

// cli holds what the persistent flags and the loaded config resolve to.
type cli struct {
	v        *viper.Viper
	cfgFile  string
	envFiles []string
	plain    bool
	cfg      *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := fang.Execute(ctx, root); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return (&cli{v: config.New()}).rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codedrop",
		Short: "Send a file to another computer with a short spoken code",
		Long: "codedrop moves one file between two computers. The sender gets a code such as\n" +
			"7-acid-acorn, the receiver types it, and both sides authenticate each other\n" +
			"before any data moves.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			startup.Close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default: ./codedrop.yaml or "+config.Dir()+"/codedrop.yaml)")
	flags.StringSliceVar(&c.envFiles, "env-file", nil, "dotenv files to load before reading the config (default .env)")
	flags.BoolVar(&c.plain, "plain", false, "print line based output instead of the interactive UI")
	flags.String("rendezvous-url", "", "rendezvous server URL")
	flags.String("transit-relay", "", "transit relay URL (defaults to the rendezvous server)")
	flags.String("app-id", "", "application namespace shared by both sides")
	flags.Bool("discover", false, "find a relay on the local network with mDNS")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "text or json")
	flags.String("log-file", "", "file to write logs to")
	bindFlags(c.v, cmd, map[string]string{
		"rendezvous_url":    "rendezvous-url",
		"transit_relay_url": "transit-relay",
		"app_id":            "app-id",
		"discover":          "discover",
		"log_level":         "log-level",
		"log_format":        "log-format",
		"log_file":          "log-file",
	})

	cmd.AddCommand(newSendCmd(c), newReceiveCmd(c), newRelayCmd(c), newHistoryCmd(c))
	return cmd
}

// setup loads the environment, config and logging, in that order.
func (c *cli) setup() error {
	if err := startup.LoadEnv(c.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if err := startup.Init(startup.Options{
		LogFile:   cfg.LogFile,
		LogLevel:  level,
		LogFormat: cfg.LogFormat,
	}); err != nil {
		return err
	}
	c.cfg = cfg
	slog.Debug("Configuration loaded", "rendezvous", cfg.Wormhole.RendezvousURL, "transit", cfg.Wormhole.TransitRelay())
	return nil
}

// interactive reports whether the full-screen UI can be used.
func (c *cli) interactive() bool {
	if c.plain {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// resolveRelay points both URLs at a relay found on the LAN when asked to.
func (c *cli) resolveRelay(ctx context.Context) error {
	if !c.cfg.Discover {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	svc, err := discovery.DiscoverFirst(ctx, &discovery.MDNSAdapter{})
	if err != nil {
		return err
	}
	slog.Info("Using relay from the local network", "name", svc.Name, "url", svc.URL())
	c.cfg.Wormhole.RendezvousURL = svc.URL()
	c.cfg.Wormhole.TransitRelayURL = ""
	return nil
}

// openHistory returns nil when the store is unavailable, for example while
// another codedrop process holds it.
func (c *cli) openHistory() *history.Store {
	if c.cfg.HistoryPath == "" {
		return nil
	}
	store, err := history.Open(c.cfg.HistoryPath, c.cfg.Retention())
	if err != nil {
		slog.Warn("History disabled", "path", c.cfg.HistoryPath, "error", err)
		return nil
	}
	return store
}

func closeHistory(store *history.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		slog.Warn("Failed to close history", "error", err)
	}
}

// bindFlags lets flags override config keys; keys maps config key to flag name.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(name)
		}
		if flag == nil {
			panic(fmt.Sprintf("unknown flag %q", name))
		}
		cobra.CheckErr(v.BindPFlag(key, flag))
	}
}
