// internal/server/https.go
package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/acme/autocert"
)

// HTTPSConfig holds HTTPS/TLS configuration for the admin endpoint.
type HTTPSConfig struct {
	Addr     string // HTTPS listen address, default ":443"
	Domain   string // Domain for the Let's Encrypt certificate
	CertDir  string // Certificate cache directory, default "certs"
	HTTPAddr string // ACME challenge and redirect listener, default ":80"
}

var (
	errDomainRequired = errors.New("domain required for HTTPS")
	errLocalhost      = errors.New("Let's Encrypt requires a public domain, not localhost. Use a reverse proxy for local HTTPS")
	errIPAddress      = errors.New("Let's Encrypt requires a domain name, not an IP address")
)

func (c HTTPSConfig) withDefaults() HTTPSConfig {
	if c.Addr == "" {
		c.Addr = ":443"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":80"
	}
	if c.CertDir == "" {
		c.CertDir = "certs"
	}
	return c
}

// ValidateDomain checks that domain can be issued a Let's Encrypt
// certificate: a dotted DNS name that is neither localhost nor an IP.
func ValidateDomain(domain string) error {
	if domain == "" {
		return errDomainRequired
	}
	if strings.EqualFold(domain, "localhost") {
		return errLocalhost
	}
	if net.ParseIP(strings.Trim(domain, "[]")) != nil {
		return errIPAddress
	}

	for _, label := range strings.Split(domain, ".") {
		if !validLabel(label) {
			return fmt.Errorf("invalid domain format: %s", domain)
		}
	}
	return nil
}

// validLabel reports whether s is a DNS label: 1-63 letters, digits or
// hyphens, not starting or ending with a hyphen.
func validLabel(s string) bool {
	if len(s) == 0 || len(s) > 63 || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}

// NewAutocertManager creates an autocert.Manager that only answers for
// domain and caches certificates in certDir.
func NewAutocertManager(domain, certDir string) *autocert.Manager {
	return &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domain),
		Cache:      autocert.DirCache(certDir),
	}
}

// NewTLSConfig creates a TLS config serving certificates from manager.
func NewTLSConfig(manager *autocert.Manager) *tls.Config {
	return &tls.Config{
		GetCertificate: manager.GetCertificate,
		MinVersion:     tls.VersionTLS12,
		NextProtos:     []string{"h2", "http/1.1"},
	}
}

// HTTPRedirectHandler redirects every request to the same path on
// https://domain. Wrap it with autocert.Manager.HTTPHandler so ACME
// challenges are answered first.
func HTTPRedirectHandler(domain string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://"+domain+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}
