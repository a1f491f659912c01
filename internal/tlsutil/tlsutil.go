// Package tlsutil provides centralized TLS configuration for the listener's
// servers and for the health-check client.
// 安全加固：TLS 1.2+，仅 AEAD 密码套件。
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

// DefaultTLSConfig returns a hardened TLS configuration.
// MinVersion TLS 1.2, AEAD-only cipher suites.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// ServerTLSConfig returns the hardened configuration serving certs. Only
// HTTP/1.1 is negotiated over ALPN.
func ServerTLSConfig(certs ...tls.Certificate) *tls.Config {
	cfg := DefaultTLSConfig()
	cfg.Certificates = certs
	cfg.NextProtos = []string{"http/1.1"}
	return cfg
}

// ClientTLSConfig returns the hardened configuration for a client that
// talks to one of the listener's TLS servers. With caFile set only
// certificates chaining to it are trusted, which covers self-signed server
// certificates; otherwise the system roots are used.
func ClientTLSConfig(caFile string) (*tls.Config, error) {
	cfg := DefaultTLSConfig()
	cfg.NextProtos = []string{"http/1.1"}
	if caFile == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("tls: read CA: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("tls: no certificates in %s", caFile)
	}
	cfg.RootCAs = roots
	return cfg, nil
}

// NewProbeClient returns a one-shot HTTP/1.1 client for health probes
// against the listener's servers. Connections are not kept alive since
// every probe is a separate process.
func NewProbeClient(timeout time.Duration, caFile string) (*http.Client, error) {
	tlsCfg, err := ClientTLSConfig(caFile)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsCfg,
			DialContext: (&net.Dialer{
				Timeout: timeout,
			}).DialContext,
			TLSHandshakeTimeout: timeout,
			DisableKeepAlives:   true,
			ForceAttemptHTTP2:   false,
		},
	}, nil
}
