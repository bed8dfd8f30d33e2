package validation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

var (
	ErrInvalidURL  = errors.New("invalid url format")
	ErrBlockedHost = errors.New("blocked url host")
	ErrBlockedPort = errors.New("blocked url port")
)

// HTTPURL accepts only absolute http(s) urls with a host.
func HTTPURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, ErrInvalidURL
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	if strings.TrimSpace(parsed.Hostname()) == "" {
		return nil, ErrInvalidURL
	}
	return parsed, nil
}

// PublicHTTPURL is HTTPURL plus a refusal of loopback, private and
// link-local hosts and of non-standard ports.
func PublicHTTPURL(rawURL string) (*url.URL, error) {
	parsed, err := HTTPURL(rawURL)
	if err != nil {
		return nil, err
	}
	if internalHost(parsed.Hostname()) {
		return nil, ErrBlockedHost
	}
	if port := strings.TrimSpace(parsed.Port()); port != "" && !webPorts[port] {
		return nil, ErrBlockedPort
	}
	return parsed, nil
}

var (
	webPorts         = map[string]bool{"80": true, "443": true}
	internalSuffixes = []string{".localhost", ".local", ".internal"}
)

// internalHost reports names and literal addresses that only make sense
// inside a private network.
func internalHost(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "localhost" {
		return true
	}
	for _, suffix := range internalSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	addr, err := netip.ParseAddr(host)
	return err == nil && !publicAddr(addr)
}

func publicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() && addr.IsGlobalUnicast() && !addr.IsPrivate()
}

// SecureDialContext resolves the target host itself and dials the first
// public address it gets back. Hosts that resolve to any non-public
// address are refused, so redirects and DNS rebinding cannot reach them.
func SecureDialContext(base *net.Dialer) func(context.Context, string, string) (net.Conn, error) {
	if base == nil {
		base = &net.Dialer{}
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(address)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
		if strings.TrimSpace(host) == "" || internalHost(host) {
			return nil, ErrBlockedHost
		}
		addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return nil, err
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("no ip addresses for host %q", host)
		}
		for _, addr := range addrs {
			if !publicAddr(addr) {
				return nil, ErrBlockedHost
			}
		}
		return base.DialContext(ctx, network, net.JoinHostPort(addrs[0].Unmap().String(), port))
	}
}
