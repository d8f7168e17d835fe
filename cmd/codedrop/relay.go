package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/codedrop/api"
	"github.com/rescp17/codedrop/pkg/discovery"
	"github.com/rescp17/codedrop/pkg/system"
)

const statsInterval = time.Minute

func newRelayCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run a rendezvous and transit relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd.Context(), c, cmd)
		},
	}
	cmd.Flags().String("listen", "", "address to listen on")
	cmd.Flags().Bool("announce", false, "announce the relay on the local network with mDNS")
	cmd.Flags().String("tls-cert", "", "serve HTTPS with this certificate file")
	cmd.Flags().String("tls-key", "", "private key for --tls-cert")
	bindFlags(c.v, cmd, map[string]string{
		"relay.listen":   "listen",
		"relay.announce": "announce",
		"relay.tls_cert": "tls-cert",
		"relay.tls_key":  "tls-key",
	})
	return cmd
}

func runRelay(ctx context.Context, c *cli, cmd *cobra.Command) error {
	relay := api.NewServer(c.cfg.ServerConfig())
	ln, err := net.Listen("tcp", c.cfg.Relay.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.cfg.Relay.Listen, err)
	}
	httpSrv := &http.Server{Handler: relay, ReadHeaderTimeout: 10 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if c.cfg.Relay.TLS() {
			err = httpSrv.ServeTLS(ln, c.cfg.Relay.TLSCert, c.cfg.Relay.TLSKey)
		} else {
			err = httpSrv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	port := ln.Addr().(*net.TCPAddr).Port
	if c.cfg.Relay.Announce {
		g.Go(func() error {
			return (&discovery.MDNSAdapter{}).Announce(ctx, relayService(port, c.cfg.Relay.TLS()))
		})
	}
	g.Go(func() error {
		logStats(ctx, relay, system.NewMonitor())
		return nil
	})

	slog.Info("Relay started", "addr", ln.Addr().String(), "announce", c.cfg.Relay.Announce, "tls", c.cfg.Relay.TLS())
	fmt.Fprintf(cmd.OutOrStdout(), "Relay listening on %s\n", ln.Addr())
	return g.Wait()
}

func relayService(port int, tls bool) discovery.ServiceInfo {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "codedrop"
	}
	text := map[string]string{"version": version}
	if tls {
		text[discovery.TextTLS] = "1"
	}
	return discovery.ServiceInfo{
		Name:   name,
		Type:   discovery.DefaultServiceType,
		Domain: discovery.DefaultDomain,
		Port:   port,
		Text:   text,
	}
}

func logStats(ctx context.Context, relay *api.Server, monitor *system.Monitor) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mailboxes, waiting := relay.Stats()
			slog.Info("Relay stats", "mailboxes", mailboxes, "transitWaiting", waiting, "process", monitor.Snapshot())
		}
	}
}
