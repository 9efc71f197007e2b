// Package tls provides automatic certificate management using CertMagic.
package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/azure"
)

// Config holds certificate management configuration.
type Config struct {
	Domains  []string
	Email    string
	CacheDir string
	Staging  bool // Use Let's Encrypt staging environment
	DNS      DNSConfig
}

// DNSConfig holds Azure DNS provider settings for DNS-01 challenges.
// DNS-01 lets the tile server obtain certificates without exposing port
// 80, which matters for deployments that only serve a local network.
type DNSConfig struct {
	SubscriptionID    string
	ResourceGroupName string
	ClientID          string // User Assigned Managed Identity client ID (optional)
}

// Manager obtains and renews certificates for the configured domains and
// hands the resulting TLS configuration to the HTTP server.
type Manager struct {
	config    Config
	logger    *slog.Logger
	tlsConfig *tls.Config
}

// NewManager configures CertMagic and synchronously obtains certificates.
// It blocks until the certificates are on hand or the ACME flow fails.
func NewManager(cfg Config, logger *slog.Logger) (*Manager, error) {
	if len(cfg.Domains) == 0 {
		return nil, fmt.Errorf("no TLS domains configured")
	}
	if cfg.Email == "" {
		return nil, fmt.Errorf("no ACME contact email configured")
	}

	configureACME(cfg)

	logger.Info("obtaining certificates", "domains", cfg.Domains, "staging", cfg.Staging)

	tlsConfig, err := certmagic.TLS(cfg.Domains)
	if err != nil {
		return nil, fmt.Errorf("configuring TLS: %w", err)
	}

	logger.Info("certificates ready")

	return &Manager{
		config:    cfg,
		logger:    logger,
		tlsConfig: tlsConfig,
	}, nil
}

// configureACME applies account, storage and challenge settings to
// CertMagic's package-level defaults.
func configureACME(cfg Config) {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = cfg.Email

	if cfg.Staging {
		certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
	}

	if cfg.CacheDir != "" {
		certmagic.Default.Storage = &certmagic.FileStorage{Path: cfg.CacheDir}
	}

	// Challenges run over Azure DNS. An empty ClientID selects the
	// System Assigned Managed Identity.
	certmagic.DefaultACME.DNS01Solver = &certmagic.DNS01Solver{
		DNSManager: certmagic.DNSManager{
			DNSProvider: &azure.Provider{
				SubscriptionId:    cfg.DNS.SubscriptionID,
				ResourceGroupName: cfg.DNS.ResourceGroupName,
				ClientId:          cfg.DNS.ClientID,
			},
		},
	}
}

// TLSConfig returns the TLS configuration for the HTTP server.
func (m *Manager) TLSConfig() *tls.Config {
	return m.tlsConfig
}

// Renew re-runs synchronous certificate management for the configured
// domains. CertMagic renews in the background on its own; this exists for
// an explicit pre-flight after long downtime.
func (m *Manager) Renew(ctx context.Context) error {
	if err := certmagic.ManageSync(ctx, m.config.Domains); err != nil {
		return fmt.Errorf("managing certificates: %w", err)
	}
	return nil
}
