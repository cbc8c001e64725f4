// Package guard implements the SSRF boundary every outbound URL the
// gateway dereferences must pass: scheme/host rejection rules plus a
// DNS-backed private-address check, generalising the teacher's
// webx.isPrivateHost from "loopback/private/link-local" to the full
// obfuscated-address table a public-facing fetcher needs.
package guard

import (
	"context"
	"encoding/binary"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/readmd/gateway/internal/errkind"
)

const (
	dnsCacheTTL      = 5 * time.Second
	dnsCacheSweepCap = 500
)

var metadataHosts = map[string]bool{
	"metadata.google.internal":  true,
	"metadata.goog":             true,
	"instance-data.ec2.internal": true,
}

// privateV4 lists the private/reserved IPv4 ranges the guard blocks,
// beyond what net.IP.IsPrivate already covers.
var privateV4 = []struct {
	net  string
	bits int
}{
	{"0.0.0.0", 8},
	{"10.0.0.0", 8},
	{"127.0.0.0", 8},
	{"100.64.0.0", 10},
	{"169.254.0.0", 16},
	{"172.16.0.0", 12},
	{"192.168.0.0", 16},
	{"198.18.0.0", 15},
	{"192.0.0.0", 24},
}

type dnsCacheEntry struct {
	blocked   bool
	expiresAt time.Time
}

// Guard is the process-wide SSRF boundary. It owns a small DNS result
// cache, mutated under a RWMutex the same way the teacher guards its other
// process-long maps (browser pool, in-process LRU).
type Guard struct {
	mu    sync.RWMutex
	cache map[string]dnsCacheEntry
}

func New() *Guard {
	return &Guard{cache: make(map[string]dnsCacheEntry)}
}

// CheckURL validates scheme and host syntax rules that don't require a
// network round trip.
func (g *Guard) CheckURL(raw string) error {
	u, host, err := parseHostPort(raw)
	if err != nil {
		return errkind.New(errkind.BlockedUrl, "invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errkind.New(errkind.BlockedUrl, "scheme must be http or https")
	}
	if err := checkHostSyntax(host); err != nil {
		return err
	}
	return nil
}

// CheckURLFull runs the full SSRF guard — syntax rules plus DNS
// resolution — against raw, the combination every redirect hop and every
// top-level request must pass.
func (g *Guard) CheckURLFull(ctx context.Context, raw string) error {
	if err := g.CheckURL(raw); err != nil {
		return err
	}
	_, host, err := parseHostPort(raw)
	if err != nil {
		return errkind.New(errkind.BlockedUrl, "invalid URL")
	}
	return g.checkDNS(ctx, host)
}

// CheckHost validates a bare hostname with the same syntax rules and DNS
// check CheckURLFull applies to a full URL's host.
func (g *Guard) CheckHost(ctx context.Context, host string) error {
	if err := checkHostSyntax(host); err != nil {
		return err
	}
	return g.checkDNS(ctx, host)
}

// checkHostSyntax rejects hosts that are obviously bad without a DNS
// lookup: empty, localhost variants, bracketed loopback, bare-decimal/hex
// IPv4, leading-zero octets, and known metadata hostnames.
func checkHostSyntax(host string) error {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return errkind.New(errkind.BlockedUrl, "empty host")
	}
	if host == "localhost" || host == "[::1]" || host == "::1" {
		return errkind.New(errkind.BlockedUrl, "loopback host blocked")
	}
	if metadataHosts[host] {
		return errkind.New(errkind.BlockedUrl, "metadata host blocked")
	}

	bare := strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	if ip := net.ParseIP(bare); ip != nil {
		if isPrivateIP(ip) {
			return errkind.New(errkind.BlockedUrl, "private address blocked")
		}
		return nil
	}

	if _, ok := parseDecimalOrHexIPv4(host); ok {
		return errkind.New(errkind.BlockedUrl, "obfuscated IPv4 host blocked")
	}

	if hasLeadingZeroOctet(host) {
		return errkind.New(errkind.BlockedUrl, "obfuscated IPv4 octet blocked")
	}

	return nil
}

// checkDNS resolves host (unless it's a literal IP, already handled by
// checkHostSyntax) and blocks if any returned address is private. Results
// are cached briefly to bound the TOCTOU window between this check and the
// actual connection.
func (g *Guard) checkDNS(ctx context.Context, host string) error {
	bare := strings.TrimPrefix(strings.TrimSuffix(strings.ToLower(host), "]"), "[")
	if net.ParseIP(bare) != nil {
		return nil // literal IP already checked by checkHostSyntax
	}
	if _, ok := parseDecimalOrHexIPv4(host); ok {
		return nil
	}

	if blocked, hit := g.lookupCache(host); hit {
		if blocked {
			return errkind.New(errkind.BlockedUrl, "host resolves to private address")
		}
		return nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		// The guard never raises on DNS lookup network errors; the
		// fetcher will fail naturally against the unresolved host.
		return nil
	}

	blocked := false
	for _, a := range addrs {
		if isPrivateIP(a.IP) {
			blocked = true
			break
		}
	}
	g.storeCache(host, blocked)
	if blocked {
		return errkind.New(errkind.BlockedUrl, "host resolves to private address")
	}
	return nil
}

func (g *Guard) lookupCache(host string) (blocked, hit bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.cache[host]
	if !ok || time.Now().After(e.expiresAt) {
		return false, false
	}
	return e.blocked, true
}

func (g *Guard) storeCache(host string, blocked bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.cache) >= dnsCacheSweepCap {
		g.sweepLocked()
	}
	g.cache[host] = dnsCacheEntry{blocked: blocked, expiresAt: time.Now().Add(dnsCacheTTL)}
}

// sweepLocked opportunistically drops expired entries; called with mu held.
func (g *Guard) sweepLocked() {
	now := time.Now()
	for k, e := range g.cache {
		if now.After(e.expiresAt) {
			delete(g.cache, k)
		}
	}
}

func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		if v4.IsLoopback() || v4.IsPrivate() || v4.IsLinkLocalUnicast() || v4.IsUnspecified() {
			return true
		}
		for _, r := range privateV4 {
			_, cidr, err := net.ParseCIDR(r.net + "/" + strconv.Itoa(r.bits))
			if err == nil && cidr.Contains(v4) {
				return true
			}
		}
		return false
	}

	// IPv6: ::1, fe80::/10, fc00::/7, and ::ffff:-mapped addresses follow
	// the IPv4 rules above.
	if mapped := ip.To4(); mapped != nil {
		return isPrivateIP(mapped)
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return true
	}
	if ip[0]&0xfe == 0xfc { // fc00::/7
		return true
	}
	return false
}

func parseDecimalOrHexIPv4(host string) (net.IP, bool) {
	h := host
	base := 10
	if strings.HasPrefix(h, "0x") || strings.HasPrefix(h, "0X") {
		base = 16
		h = h[2:]
	} else if !isAllDigits(h) {
		return nil, false
	}
	n, err := strconv.ParseUint(h, base, 64)
	if err != nil || n > 0xFFFFFFFF {
		return nil, false
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(n))
	return net.IP(buf), true
}

func parseHostPort(raw string) (*url.URL, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", err
	}
	return u, u.Hostname(), nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hasLeadingZeroOctet(host string) bool {
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if len(p) > 1 && p[0] == '0' && isAllDigits(p) {
			return true
		}
	}
	return false
}
