package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
)

const (
	DefaultServiceType = "_codedrop._tcp"
	DefaultDomain      = "local"

	// TextTLS is the TXT key set to "1" by relays that serve HTTPS.
	TextTLS = "tls"
)

var ErrNoRelay = errors.New("no relay found on the local network")

type ServiceInfo struct {
	Name   string // instance name
	Type   string // service name, e.g., "_codedrop._tcp"
	Domain string // domain, e.g., "local"
	Addr   net.IP
	Port   int
	Text   map[string]string
}

// URL is the relay base URL the service advertises.
func (s ServiceInfo) URL() string {
	scheme := "http"
	if s.Text[TextTLS] == "1" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(s.Addr.String(), strconv.Itoa(s.Port)))
}

// DiscoveryResult carries either a snapshot of the services seen so far or
// an error.
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}

// ServiceName is the browse name for a type in a domain.
func ServiceName(serviceType, domain string) string {
	return fmt.Sprintf("%s.%s.", serviceType, domain)
}

// DiscoverFirst browses for relays until one shows up or ctx ends.
// Services are ordered by name so repeated lookups agree.
func DiscoverFirst(ctx context.Context, adapter Adapter) (ServiceInfo, error) {
	results := adapter.Discover(ctx, ServiceName(DefaultServiceType, DefaultDomain))
	for {
		select {
		case <-ctx.Done():
			return ServiceInfo{}, fmt.Errorf("%w: %w", ErrNoRelay, ctx.Err())
		case res, ok := <-results:
			if !ok {
				return ServiceInfo{}, ErrNoRelay
			}
			if res.Error != nil {
				return ServiceInfo{}, res.Error
			}
			if len(res.Services) == 0 {
				continue
			}
			services := append([]ServiceInfo(nil), res.Services...)
			sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
			return services[0], nil
		}
	}
}
