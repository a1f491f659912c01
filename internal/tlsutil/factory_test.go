package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePEM(t *testing.T, cert tls.Certificate) (certFile, keyFile string) {
	t.Helper()
	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	keyDER, err := x509.MarshalPKCS8PrivateKey(cert.PrivateKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func TestSelfSigned(t *testing.T) {
	cert, err := SelfSigned("127.0.0.1", "localhost")
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)

	assert.Equal(t, []string{"localhost"}, cert.Leaf.DNSNames)
	require.Len(t, cert.Leaf.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", cert.Leaf.IPAddresses[0].String())
	assert.NoError(t, cert.Leaf.VerifyHostname("localhost"))
}

func TestFileContextFactory(t *testing.T) {
	cert, err := SelfSigned("localhost")
	require.NoError(t, err)
	certFile, keyFile := writePEM(t, cert)

	cfg, err := FileContextFactory{CertFile: certFile, KeyFile: keyFile}.ServerTLSConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
	assert.Equal(t, tls.NoClientCert, cfg.ClientAuth)

	cfg, err = FileContextFactory{CertFile: certFile, KeyFile: keyFile, ClientCAFile: certFile, RequireClientCert: true}.ServerTLSConfig()
	require.NoError(t, err)
	assert.Equal(t, tls.RequireAndVerifyClientCert, cfg.ClientAuth)
	assert.NotNil(t, cfg.ClientCAs)
}

func TestFileContextFactory_Errors(t *testing.T) {
	_, err := FileContextFactory{}.ServerTLSConfig()
	assert.Error(t, err)

	_, err = FileContextFactory{CertFile: "missing.pem", KeyFile: "missing.key"}.ServerTLSConfig()
	assert.Error(t, err)

	cert, err := SelfSigned("localhost")
	require.NoError(t, err)
	certFile, keyFile := writePEM(t, cert)
	bogusCA := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(bogusCA, []byte("not a pem"), 0o600))

	_, err = FileContextFactory{CertFile: certFile, KeyFile: keyFile, ClientCAFile: bogusCA}.ServerTLSConfig()
	assert.ErrorContains(t, err, "no certificates")
}

func TestStaticContextFactory(t *testing.T) {
	_, err := StaticContextFactory{}.ServerTLSConfig()
	assert.Error(t, err)

	base := DefaultTLSConfig()
	cfg, err := StaticContextFactory{Config: base}.ServerTLSConfig()
	require.NoError(t, err)
	assert.NotSame(t, base, cfg)
	assert.Equal(t, base.MinVersion, cfg.MinVersion)
}
