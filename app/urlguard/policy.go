package urlguard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy holds the tunable parts of URL validation. The zero value is
// unusable; start from DefaultPolicy or LoadPolicy.
type Policy struct {
	AllowedDomains []string `yaml:"allowed_domains"`

	// BlockedHosts are rejected before the allowlist is consulted.
	BlockedHosts          []string `yaml:"blocked_hosts"`
	BlockedDomainSuffixes []string `yaml:"blocked_domain_suffixes"`
	BlockedPorts          []string `yaml:"blocked_ports"`

	// PathPrefixes restricts which paths are fetchable on a given
	// domain. Domains without an entry accept any path.
	PathPrefixes map[string][]string `yaml:"path_prefixes"`

	// TrackingParams are stripped from the query string per domain.
	TrackingParams map[string][]string `yaml:"tracking_params"`

	MaxURLLength  int `yaml:"max_url_length"`
	MaxPathLength int `yaml:"max_path_length"`

	// AllowLoopback permits loopback addresses despite the private
	// range block. Only for tests against local HTTP servers.
	AllowLoopback bool `yaml:"allow_loopback"`
}

func DefaultPolicy() *Policy {
	return &Policy{
		AllowedDomains: []string{
			"acquired.fm",
			"transistor.fm",
			"docs.google.com",
			"google.com",
			"amazon.com",
			"amzn.to",
			"openlibrary.org",
			"covers.openlibrary.org",
			"m.media-amazon.com",
			"images-na.ssl-images-amazon.com",
		},
		BlockedHosts: []string{
			"169.254.169.254",          // AWS/Azure/GCP metadata
			"metadata.google.internal", // GCP metadata
			"100.100.100.200",          // Alibaba Cloud
			"192.0.0.192",              // Oracle Cloud
		},
		BlockedDomainSuffixes: []string{
			".local", ".internal", ".corp", ".lan", ".intranet",
			".localhost", ".cluster.local",
		},
		BlockedPorts: []string{
			"22", "23", "25", "53", "110", "143", "445",
			"3306", "5432", "6379", "9200", "11211", "27017",
		},
		PathPrefixes: map[string][]string{
			"docs.google.com": {"/document/", "/spreadsheets/", "/presentation/"},
		},
		TrackingParams: map[string][]string{
			"amazon.com": {
				"tag", "ref", "ref_", "linkCode", "linkId", "creative",
				"creativeASIN", "camp", "ascsubtag", "pd_rd_i", "pd_rd_r",
				"pd_rd_w", "pd_rd_wg", "pf_rd_p", "pf_rd_r", "psc", "th",
				"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term",
			},
		},
		MaxURLLength:  2048,
		MaxPathLength: 500,
	}
}

// LoadPolicy reads a YAML policy file. Fields left empty in the file
// fall back to the built-in defaults.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	policy := DefaultPolicy()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
	}

	if policy.MaxURLLength <= 0 {
		policy.MaxURLLength = 2048
	}
	if policy.MaxPathLength <= 0 {
		policy.MaxPathLength = 500
	}
	if len(policy.AllowedDomains) == 0 {
		return nil, fmt.Errorf("policy must allow at least one domain")
	}

	return policy, nil
}
