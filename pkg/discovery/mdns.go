package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/brutella/dnssd"
)

type MDNSAdapter struct{}

// Announce advertises serviceInfo until ctx ends.
func (m *MDNSAdapter) Announce(ctx context.Context, serviceInfo ServiceInfo) error {
	text := map[string]string{"desc": "codedrop relay"}
	for k, v := range serviceInfo.Text {
		text[k] = v
	}

	cfg := dnssd.Config{
		Name:   serviceInfo.Name,
		Type:   serviceInfo.Type,
		Domain: serviceInfo.Domain,
		// mdns will multicast to ip address, so we can leave it nil
		IPs:  nil,
		Text: text,
		Port: serviceInfo.Port,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}

	if _, err = rp.Add(service); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	slog.Info("Announcing relay", "name", serviceInfo.Name, "port", serviceInfo.Port)
	if err = rp.Respond(ctx); err != nil {
		// Context cancellation is not an error in normal operation
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to respond to mDNS service: %w", err)
	}
	return nil
}

// pickIP prefers an IPv4 address, which every client can dial.
func pickIP(ips []net.IP) net.IP {
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
	}
	if len(ips) > 0 {
		return ips[0]
	}
	return nil
}

func entryKey(e dnssd.BrowseEntry) string {
	return fmt.Sprintf("%s:%s:%s", e.Name, e.Type, e.Domain)
}

// resolveTimeout bounds the TXT lookup for an entry found without one.
const resolveTimeout = 2 * time.Second

// browser tracks the instances seen by a lookup. Entries are published
// once their TXT data is known.
type browser struct {
	resolve func(ctx context.Context, instance string) (dnssd.Service, error)

	mu      sync.Mutex
	entries map[string]ServiceInfo
	pending map[string]bool
	out     chan DiscoveryResult
	wg      sync.WaitGroup
}

func newBrowser(resolve func(ctx context.Context, instance string) (dnssd.Service, error)) *browser {
	return &browser{
		resolve: resolve,
		entries: make(map[string]ServiceInfo),
		pending: make(map[string]bool),
		out:     make(chan DiscoveryResult, 10),
	}
}

// snapshot sends all published instances. Callers hold b.mu.
func (b *browser) snapshot() {
	services := make([]ServiceInfo, 0, len(b.entries))
	for _, entry := range b.entries {
		services = append(services, entry)
	}
	select {
	case b.out <- DiscoveryResult{Services: services}:
	default:
	}
}

func (b *browser) sendError(err error) {
	select {
	case b.out <- DiscoveryResult{Error: err}:
	default:
	}
}

func (b *browser) add(ctx context.Context, e dnssd.BrowseEntry) {
	ip := pickIP(e.IPs)
	if ip == nil {
		slog.Debug("Ignoring mDNS entry without address", "name", e.Name)
		return
	}
	info := ServiceInfo{
		Name:   e.Name,
		Type:   e.Type,
		Domain: e.Domain,
		Addr:   ip,
		Port:   e.Port,
		Text:   e.Text,
	}
	key := entryKey(e)
	if len(info.Text) > 0 {
		b.publish(key, info)
		return
	}

	b.mu.Lock()
	b.pending[key] = true
	b.mu.Unlock()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
		defer cancel()
		srv, err := b.resolve(rctx, e.EscapedServiceInstanceName())
		if err != nil {
			slog.Debug("Failed to resolve mDNS TXT record", "name", e.Name, "error", err)
		} else {
			info.Text = srv.Text
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if !b.pending[key] {
			return
		}
		delete(b.pending, key)
		b.entries[key] = info
		b.snapshot()
	}()
}

func (b *browser) publish(key string, info ServiceInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, key)
	b.entries[key] = info
	b.snapshot()
}

func (b *browser) remove(e dnssd.BrowseEntry) {
	key := entryKey(e)
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, key)
	delete(b.entries, key)
	b.snapshot()
}

// Discover browses for service and sends a snapshot of all known instances
// whenever one appears or disappears.
func (m *MDNSAdapter) Discover(ctx context.Context, service string) <-chan DiscoveryResult {
	b := newBrowser(dnssd.LookupInstance)
	go func() {
		err := dnssd.LookupType(ctx, service,
			func(e dnssd.BrowseEntry) { b.add(ctx, e) },
			b.remove)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			b.sendError(fmt.Errorf("mDNS lookup failed: %w", err))
		}
		b.wg.Wait()
		close(b.out)
	}()
	return b.out
}
