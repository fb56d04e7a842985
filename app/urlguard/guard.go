package urlguard

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

// Guard validates and sanitizes URLs before any outbound request is
// made. Every component that fetches over the network must go through
// it.
type Guard struct {
	policy *Policy
}

func NewGuard(policy *Policy) *Guard {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Guard{policy: policy}
}

// Validate checks a raw URL string against the guard policy. Invalid
// URLs fail closed with a reason; valid URLs come back sanitized
// (fragment removed, tracking parameters stripped) with any suspicious
// patterns recorded as warnings.
func (g *Guard) Validate(raw string) ValidatedURL {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return invalid("URL is empty")
	}
	if len(raw) > g.policy.MaxURLLength {
		return invalid(fmt.Sprintf("URL exceeds maximum length of %d", g.policy.MaxURLLength))
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return invalid(fmt.Sprintf("URL is not parseable: %v", err))
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return invalid(fmt.Sprintf("scheme %q not allowed, only http and https", parsed.Scheme))
	}

	hostname := strings.ToLower(parsed.Hostname())
	if hostname == "" {
		return invalid("URL has no hostname")
	}

	loopback := false
	if ip := net.ParseIP(hostname); ip != nil {
		switch {
		case ip.IsLoopback():
			if !g.policy.AllowLoopback {
				return invalid("loopback address not allowed")
			}
			loopback = true
		case ip.IsPrivate():
			return invalid("private-range address not allowed")
		case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
			return invalid("link-local address not allowed")
		case ip.IsUnspecified():
			return invalid("unspecified address not allowed")
		}
	} else if hostname == "localhost" {
		if !g.policy.AllowLoopback {
			return invalid("loopback address not allowed")
		}
		loopback = true
	}

	for _, blocked := range g.policy.BlockedHosts {
		if hostname == blocked {
			return invalid(fmt.Sprintf("host %s is blocked", hostname))
		}
	}

	for _, suffix := range g.policy.BlockedDomainSuffixes {
		if strings.HasSuffix(hostname, suffix) {
			return invalid(fmt.Sprintf("internal domain suffix %s not allowed", suffix))
		}
	}

	if !loopback {
		allowedDomain := g.matchAllowedDomain(hostname)
		if allowedDomain == "" {
			return invalid(fmt.Sprintf("host %s is not on the allowlist", hostname))
		}

		if port := parsed.Port(); port != "" {
			for _, blocked := range g.policy.BlockedPorts {
				if port == blocked {
					return invalid(fmt.Sprintf("port %s is blocked", port))
				}
			}
			if port != "80" && port != "443" && port != "8080" && port != "8443" {
				return invalid(fmt.Sprintf("port %s is outside the safe range", port))
			}
		}

		if prefixes := g.pathPrefixesFor(hostname); len(prefixes) > 0 {
			if !matchesAnyPrefix(parsed.Path, prefixes) {
				return invalid(fmt.Sprintf("path %s not allowed on %s", parsed.Path, hostname))
			}
		}
	}

	warnings := g.collectWarnings(raw, parsed)

	sanitized := *parsed
	sanitized.Fragment = ""
	sanitized.RawFragment = ""
	g.stripTrackingParams(&sanitized, hostname)

	return ValidatedURL{
		Valid:     true,
		Sanitized: sanitized.String(),
		Warnings:  warnings,
	}
}

func (g *Guard) matchAllowedDomain(hostname string) string {
	for _, domain := range g.policy.AllowedDomains {
		if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
			return domain
		}
	}
	return ""
}

func (g *Guard) pathPrefixesFor(hostname string) []string {
	for domain, prefixes := range g.policy.PathPrefixes {
		if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
			return prefixes
		}
	}
	return nil
}

func matchesAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (g *Guard) collectWarnings(raw string, parsed *url.URL) []string {
	var warnings []string

	lower := strings.ToLower(raw)
	if strings.Contains(lower, "%2e") || strings.Contains(lower, "%2f") || strings.Contains(parsed.Path, "..") {
		warnings = append(warnings, "URL contains percent-encoded or literal traversal sequence")
	}

	if raw != norm.NFC.String(raw) || containsNonASCII(raw) {
		warnings = append(warnings, "URL contains non-ASCII characters")
		if _, err := idna.Lookup.ToASCII(parsed.Hostname()); err != nil {
			warnings = append(warnings, fmt.Sprintf("hostname fails IDNA conversion: %v", err))
		}
	}

	if len(parsed.Path) > g.policy.MaxPathLength {
		warnings = append(warnings, fmt.Sprintf("path length %d exceeds %d", len(parsed.Path), g.policy.MaxPathLength))
	}

	return warnings
}

func containsNonASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return true
		}
	}
	return false
}

func (g *Guard) stripTrackingParams(u *url.URL, hostname string) {
	if u.RawQuery == "" {
		return
	}

	var params []string
	for domain, list := range g.policy.TrackingParams {
		if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
			params = list
			break
		}
	}
	if len(params) == 0 {
		return
	}

	query := u.Query()
	for _, param := range params {
		query.Del(param)
	}
	u.RawQuery = query.Encode()
}
