package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/brutella/dnssd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	results []DiscoveryResult
	close   bool
}

func (f *fakeAdapter) Announce(ctx context.Context, service ServiceInfo) error { return nil }

func (f *fakeAdapter) Discover(ctx context.Context, service string) <-chan DiscoveryResult {
	ch := make(chan DiscoveryResult, len(f.results))
	for _, r := range f.results {
		ch <- r
	}
	if f.close {
		close(ch)
	}
	return ch
}

func TestServiceInfo_URL(t *testing.T) {
	s := ServiceInfo{Addr: net.ParseIP("192.168.1.20"), Port: 4000}
	assert.Equal(t, "http://192.168.1.20:4000", s.URL())

	s.Text = map[string]string{TextTLS: "1"}
	s.Addr = net.ParseIP("fe80::1")
	assert.Equal(t, "https://[fe80::1]:4000", s.URL())
}

func TestPickIP(t *testing.T) {
	v6, v4 := net.ParseIP("fe80::1"), net.ParseIP("10.0.0.2")
	assert.Equal(t, v4, pickIP([]net.IP{v6, v4}))
	assert.Equal(t, v6, pickIP([]net.IP{v6}))
	assert.Nil(t, pickIP(nil))
}

func TestDiscoverFirst(t *testing.T) {
	adapter := &fakeAdapter{results: []DiscoveryResult{
		{Services: nil},
		{Services: []ServiceInfo{{Name: "zeta"}, {Name: "alpha"}}},
	}}
	svc, err := DiscoverFirst(context.Background(), adapter)
	require.NoError(t, err)
	assert.Equal(t, "alpha", svc.Name)
}

func TestDiscoverFirst_Failures(t *testing.T) {
	_, err := DiscoverFirst(context.Background(), &fakeAdapter{close: true})
	assert.ErrorIs(t, err, ErrNoRelay)

	lookupErr := errors.New("no multicast interface")
	_, err = DiscoverFirst(context.Background(), &fakeAdapter{results: []DiscoveryResult{{Error: lookupErr}}})
	assert.ErrorIs(t, err, lookupErr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = DiscoverFirst(ctx, &fakeAdapter{})
	assert.ErrorIs(t, err, ErrNoRelay)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func browseEntry(text map[string]string) dnssd.BrowseEntry {
	return dnssd.BrowseEntry{
		IPs:    []net.IP{net.ParseIP("10.0.0.7")},
		Name:   "relay",
		Type:   DefaultServiceType,
		Domain: DefaultDomain,
		Port:   4443,
		Text:   text,
	}
}

func TestBrowser_ResolvesMissingText(t *testing.T) {
	var asked string
	b := newBrowser(func(ctx context.Context, instance string) (dnssd.Service, error) {
		asked = instance
		return dnssd.Service{Text: map[string]string{TextTLS: "1", "version": "v1"}}, nil
	})

	b.add(context.Background(), browseEntry(nil))
	b.wg.Wait()

	res := <-b.out
	require.Len(t, res.Services, 1)
	assert.Equal(t, "relay._codedrop._tcp.local.", asked)
	assert.Equal(t, "v1", res.Services[0].Text["version"])
	assert.Equal(t, "https://10.0.0.7:4443", res.Services[0].URL())
}

func TestBrowser_TextPresent(t *testing.T) {
	b := newBrowser(func(ctx context.Context, instance string) (dnssd.Service, error) {
		t.Fatal("resolved an entry that already had TXT data")
		return dnssd.Service{}, nil
	})
	b.add(context.Background(), browseEntry(map[string]string{"desc": "codedrop relay"}))

	res := <-b.out
	require.Len(t, res.Services, 1)
	assert.Equal(t, "codedrop relay", res.Services[0].Text["desc"])
	assert.Equal(t, "http://10.0.0.7:4443", res.Services[0].URL())
}

func TestBrowser_ResolveFailurePublishes(t *testing.T) {
	b := newBrowser(func(ctx context.Context, instance string) (dnssd.Service, error) {
		return dnssd.Service{}, context.DeadlineExceeded
	})
	b.add(context.Background(), browseEntry(nil))
	b.wg.Wait()

	res := <-b.out
	require.Len(t, res.Services, 1)
	assert.Empty(t, res.Services[0].Text)
}

func TestBrowser_RemovedWhileResolving(t *testing.T) {
	release := make(chan struct{})
	b := newBrowser(func(ctx context.Context, instance string) (dnssd.Service, error) {
		<-release
		return dnssd.Service{Text: map[string]string{"version": "v1"}}, nil
	})
	e := browseEntry(nil)
	b.add(context.Background(), e)
	b.remove(e)
	close(release)
	b.wg.Wait()

	res := <-b.out
	assert.Empty(t, res.Services)
	select {
	case res := <-b.out:
		t.Fatalf("unexpected snapshot %+v", res)
	default:
	}
}

func TestMDNSAdapter_AnnounceAndDiscover(t *testing.T) {
	// Multicast is often unavailable in CI.
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapter := &MDNSAdapter{}
	info := ServiceInfo{
		Name:   "codedrop-test-relay",
		Type:   "_codedrop-test._tcp",
		Domain: DefaultDomain,
		Port:   4000,
	}

	announced := make(chan error, 1)
	go func() { announced <- adapter.Announce(ctx, info) }()
	time.Sleep(300 * time.Millisecond)

	queryCtx, queryCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer queryCancel()
	res := <-adapter.Discover(queryCtx, ServiceName(info.Type, info.Domain))
	require.NoError(t, res.Error)
	require.NotEmpty(t, res.Services)
	assert.Equal(t, info.Name, res.Services[0].Name)
	assert.Equal(t, info.Port, res.Services[0].Port)
	assert.Equal(t, "codedrop relay", res.Services[0].Text["desc"])

	cancel()
	select {
	case err := <-announced:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("announcement did not stop")
	}
}
