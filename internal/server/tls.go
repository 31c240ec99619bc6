// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/config"
	"github.com/labstack/echo/v4"
)

// certExpiryWarning is how early an expiring certificate is reported.
const certExpiryWarning = 30 * 24 * time.Hour

// loadTLSConfig loads the certificate pair named in the configuration.
// Most deployments terminate TLS at a proxy and never call this.
func loadTLSConfig(cfg *config.ServerConfig, logger *slog.Logger) (*tls.Config, error) {
	if _, err := os.Stat(cfg.TLSCertFile); err != nil {
		return nil, fmt.Errorf("certificate file not found: %w", err)
	}
	if _, err := os.Stat(cfg.TLSKeyFile); err != nil {
		return nil, fmt.Errorf("key file not found: %w", err)
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	logger.Info("tls_certificate_loaded",
		"cert", cfg.TLSCertFile,
		"sha256", fingerprint(&cert),
	)
	if expiringSoon(&cert, time.Now()) {
		logger.Warn("tls_certificate_expiring", "cert", cfg.TLSCertFile)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// expiringSoon reports whether cert runs out within certExpiryWarning.
func expiringSoon(cert *tls.Certificate, now time.Time) bool {
	if len(cert.Certificate) == 0 {
		return true
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return true
	}
	return leaf.NotAfter.Sub(now) < certExpiryWarning
}

// fingerprint formats the SHA-256 digest of the leaf certificate as
// colon-separated hex.
func fingerprint(cert *tls.Certificate) string {
	if len(cert.Certificate) == 0 {
		return ""
	}
	sum := sha256.Sum256(cert.Certificate[0])
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.TLSServer.Serve(e.TLSListener)
}
