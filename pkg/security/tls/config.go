// Package tls provides optional TLS termination for the gateway's HTTP
// listener, with certificate hot-reload so a renewed cert/key pair (e.g.
// from Let's Encrypt) can be picked up without restarting the process.
package tls

import (
	"crypto/tls"
	"fmt"
	"os"
)

// Config describes the gateway listener's TLS settings.
type Config struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`
}

// Validate checks that CertFile/KeyFile are set and readable when TLS is
// enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CertFile == "" {
		return fmt.Errorf("tls.cert_file is required when tls.enabled is true")
	}
	if c.KeyFile == "" {
		return fmt.Errorf("tls.key_file is required when tls.enabled is true")
	}
	if _, err := os.Stat(c.CertFile); err != nil {
		return fmt.Errorf("tls cert_file not found: %w", err)
	}
	if _, err := os.Stat(c.KeyFile); err != nil {
		return fmt.Errorf("tls key_file not found: %w", err)
	}
	return nil
}

// ToTLSConfig builds a *tls.Config backed by reloader's GetCertificate, so
// certificate rotation requires no listener restart.
func ToTLSConfig(reloader *Reloader) *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: reloader.GetCertificateFunc(),
	}
}
