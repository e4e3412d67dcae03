package utils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// HostNoPort returns the host part of "ip:port", "[v6]:port" or "ip".
func HostNoPort(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return strings.Trim(s, "[]")
}

// ClientIP resolves the caller address. Forwarding headers are only read
// when trustProxy is set: left-most X-Forwarded-For first, then X-Real-IP.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		xff := r.Header.Get("X-Forwarded-For")
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		if ip := HostNoPort(xff); ip != "" {
			return ip
		}
		if ip := HostNoPort(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	return HostNoPort(r.RemoteAddr)
}

// IPMatcher matches addresses against single IPs and CIDR prefixes.
type IPMatcher struct {
	prefixes []netip.Prefix
}

// NewIPMatcher parses list. Entries that are neither an IP nor a CIDR are
// returned in invalid so the caller can report them.
func NewIPMatcher(list []string) (m *IPMatcher, invalid []string) {
	m = &IPMatcher{}
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			m.prefixes = append(m.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			m.prefixes = append(m.prefixes, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
			continue
		}
		invalid = append(invalid, s)
	}
	return m, invalid
}

// IsEmpty reports whether no rule was parsed
func (m *IPMatcher) IsEmpty() bool {
	return len(m.prefixes) == 0
}

// Allow reports whether ip falls in one of the rules
func (m *IPMatcher) Allow(ip string) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range m.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
