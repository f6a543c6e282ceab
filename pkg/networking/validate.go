package networking

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// IsLocalhost reports whether host (optionally host:port) is a loopback name.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// isPrivateIP reports whether ip is loopback, link-local or RFC1918.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate()
}

// privateIPGuardDialer wraps a dialer and refuses connections to private
// addresses. Loopback is still permitted so local development issuers work.
func privateIPGuardDialer(d *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		if IsLocalhost(host) {
			return d.DialContext(ctx, network, addr)
		}
		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, err
		}
		for _, ip := range ips {
			if isPrivateIP(ip.IP) {
				return nil, fmt.Errorf("refusing to connect to private address %s (%s)", host, ip.IP)
			}
		}
		return d.DialContext(ctx, network, addr)
	}
}

// ValidateEndpointURL checks that a URL is absolute and uses http or https.
func ValidateEndpointURL(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q in %s", u.Scheme, endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %s", endpoint)
	}
	if u.Scheme == "http" && !IsLocalhost(u.Host) {
		return fmt.Errorf("plain HTTP is only allowed for localhost: %s", endpoint)
	}
	return nil
}
