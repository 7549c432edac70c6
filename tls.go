package rubyshd

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/ghetzel/go-stockutil/log"
)

// NewTLSConfig builds the server TLS configuration from the configured PEM
// material.  Client certificates are requested and verified against the
// client CA bundle when presented, but anonymous connections are permitted.
func NewTLSConfig(config *Config) (*tls.Config, error) {
	var certificate, err = tls.LoadX509KeyPair(
		config.TLSServerCertificatePEMFilename,
		config.TLSServerPrivateKeyPEMFilename,
	)

	if err != nil {
		return nil, fmt.Errorf("bad server certificate/private key: %v", err)
	}

	caBundle, err := os.ReadFile(config.TLSClientCACertificatePEMFilename)

	if err != nil {
		return nil, fmt.Errorf("cannot read client CA bundle: %v", err)
	}

	var clientCAs = x509.NewCertPool()

	if !clientCAs.AppendCertsFromPEM(caBundle) {
		return nil, fmt.Errorf("no certificates found in %s", config.TLSClientCACertificatePEMFilename)
	}

	var tlsConfig = &tls.Config{
		Certificates: []tls.Certificate{certificate},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		ClientCAs:    clientCAs,
		MinVersion:   tls.VersionTLS12,
	}

	if filename := os.Getenv(`SSLKEYLOGFILE`); filename != `` {
		if keylog, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600); err == nil {
			tlsConfig.KeyLogWriter = keylog
		} else {
			log.Warningf("cannot open SSLKEYLOGFILE: %v", err)
		}
	}

	return tlsConfig, nil
}
