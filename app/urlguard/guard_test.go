package urlguard

import (
	"strings"
	"testing"
)

func TestValidateAllowlistedDomain(t *testing.T) {
	guard := NewGuard(DefaultPolicy())

	result := guard.Validate("https://www.amazon.com/dp/0123456789")

	if !result.Valid {
		t.Fatalf("Expected valid, got invalid: %s", result.Reason)
	}
	if result.Sanitized == "" {
		t.Error("Expected sanitized URL to be set")
	}
}

func TestValidateHostNotOnAllowlist(t *testing.T) {
	guard := NewGuard(DefaultPolicy())

	hosts := []string{
		"https://evil.example.org/path",
		"https://amazon.com.evil.org/dp/0123456789",
		"http://not-amazon.net/",
	}

	for _, rawURL := range hosts {
		result := guard.Validate(rawURL)
		if result.Valid {
			t.Errorf("Expected %s to be rejected", rawURL)
		}
		if !strings.Contains(result.Reason, "allowlist") {
			t.Errorf("Expected allowlist reason for %s, got: %s", rawURL, result.Reason)
		}
	}
}

func TestValidatePrivateAndLoopbackAddresses(t *testing.T) {
	// Loopback and private ranges are rejected regardless of the
	// allowlist contents.
	policy := DefaultPolicy()
	policy.AllowedDomains = append(policy.AllowedDomains, "127.0.0.1", "10.0.0.1", "192.168.1.1")
	guard := NewGuard(policy)

	urls := []string{
		"http://127.0.0.1/",
		"http://127.0.0.1:8080/admin",
		"http://10.0.0.1/",
		"http://192.168.1.1/router",
		"http://0.0.0.0/",
		"http://localhost/",
	}

	for _, rawURL := range urls {
		result := guard.Validate(rawURL)
		if result.Valid {
			t.Errorf("Expected %s to be rejected", rawURL)
		}
	}
}

func TestValidateMetadataEndpoint(t *testing.T) {
	guard := NewGuard(DefaultPolicy())

	result := guard.Validate("http://169.254.169.254/latest/meta-data/")

	if result.Valid {
		t.Fatal("Expected metadata endpoint to be rejected")
	}
}

func TestValidateScheme(t *testing.T) {
	guard := NewGuard(DefaultPolicy())

	for _, rawURL := range []string{
		"ftp://amazon.com/file",
		"file:///etc/passwd",
		"javascript:alert(1)",
		"gopher://amazon.com/",
	} {
		result := guard.Validate(rawURL)
		if result.Valid {
			t.Errorf("Expected %s to be rejected", rawURL)
		}
	}
}

func TestValidateStripsFragment(t *testing.T) {
	guard := NewGuard(DefaultPolicy())

	result := guard.Validate("https://www.amazon.com/dp/0123456789#reviews")

	if !result.Valid {
		t.Fatalf("Expected valid, got: %s", result.Reason)
	}
	if strings.Contains(result.Sanitized, "#") {
		t.Errorf("Expected fragment to be stripped, got: %s", result.Sanitized)
	}
}

func TestValidateStripsTrackingParams(t *testing.T) {
	guard := NewGuard(DefaultPolicy())

	result := guard.Validate("https://www.amazon.com/dp/0123456789?tag=affiliate-20&ref_=as_li_ss_tl&utm_source=doc")

	if !result.Valid {
		t.Fatalf("Expected valid, got: %s", result.Reason)
	}
	for _, param := range []string{"tag=", "ref_=", "utm_source="} {
		if strings.Contains(result.Sanitized, param) {
			t.Errorf("Expected %s to be stripped, got: %s", param, result.Sanitized)
		}
	}
}

func TestValidateBlockedPorts(t *testing.T) {
	guard := NewGuard(DefaultPolicy())

	for _, rawURL := range []string{
		"http://amazon.com:6379/",
		"http://amazon.com:5432/",
		"http://amazon.com:22/",
		"http://amazon.com:9999/",
	} {
		result := guard.Validate(rawURL)
		if result.Valid {
			t.Errorf("Expected %s to be rejected", rawURL)
		}
	}

	result := guard.Validate("https://amazon.com:443/dp/0123456789")
	if !result.Valid {
		t.Errorf("Expected port 443 to be accepted, got: %s", result.Reason)
	}
}

func TestValidateDocumentPathRestriction(t *testing.T) {
	guard := NewGuard(DefaultPolicy())

	result := guard.Validate("https://docs.google.com/document/d/abc123/edit")
	if !result.Valid {
		t.Fatalf("Expected document path to be accepted, got: %s", result.Reason)
	}

	result = guard.Validate("https://docs.google.com/forms/d/abc123/viewform")
	if result.Valid {
		t.Error("Expected non-document path on docs host to be rejected")
	}
}

func TestValidateInternalDomainSuffix(t *testing.T) {
	policy := DefaultPolicy()
	policy.AllowedDomains = append(policy.AllowedDomains, "service.internal")
	guard := NewGuard(policy)

	result := guard.Validate("http://service.internal/api")
	if result.Valid {
		t.Error("Expected internal suffix to be rejected even when allowlisted")
	}
}

func TestValidateWarnings(t *testing.T) {
	guard := NewGuard(DefaultPolicy())

	result := guard.Validate("https://www.amazon.com/%2e%2e/dp/0123456789")
	if !result.Valid {
		t.Fatalf("Expected valid with warnings, got: %s", result.Reason)
	}
	if len(result.Warnings) == 0 {
		t.Error("Expected traversal warning")
	}

	result = guard.Validate("https://www.amazon.com/dp/0123456789/ünïcode")
	if !result.Valid {
		t.Fatalf("Expected valid with warnings, got: %s", result.Reason)
	}
	found := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, "non-ASCII") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected non-ASCII warning, got: %v", result.Warnings)
	}

	longPath := "https://www.amazon.com/" + strings.Repeat("a", 600)
	result = guard.Validate(longPath)
	if !result.Valid {
		t.Fatalf("Expected valid with warnings, got: %s", result.Reason)
	}
	if len(result.Warnings) == 0 {
		t.Error("Expected long-path warning")
	}
}

func TestValidateEmptyAndMalformed(t *testing.T) {
	guard := NewGuard(DefaultPolicy())

	for _, rawURL := range []string{"", "   ", "://missing-scheme", "https://"} {
		result := guard.Validate(rawURL)
		if result.Valid {
			t.Errorf("Expected %q to be rejected", rawURL)
		}
	}
}

func TestValidateAllowLoopbackForTests(t *testing.T) {
	policy := DefaultPolicy()
	policy.AllowLoopback = true
	guard := NewGuard(policy)

	result := guard.Validate("http://127.0.0.1:39211/page")
	if !result.Valid {
		t.Fatalf("Expected loopback to be accepted with AllowLoopback, got: %s", result.Reason)
	}
}
