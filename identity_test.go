package rubyshd

import (
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityFromConnectionState(t *testing.T) {
	assert := require.New(t)

	var identity = IdentityFromConnectionState(tls.ConnectionState{})
	assert.True(identity.IsAnonymous())
	assert.Equal(`anonymous`, identity.CommonName())
	assert.Equal(`anonymous`, identity.String())

	identity = IdentityFromConnectionState(tls.ConnectionState{
		PeerCertificates: []*x509.Certificate{
			{Subject: pkix.Name{CommonName: `alice`}},
		},
	})
	assert.False(identity.IsAnonymous())
	assert.Equal(`alice`, identity.CommonName())

	// a certificate without a common name is still anonymous
	identity = IdentityFromConnectionState(tls.ConnectionState{
		PeerCertificates: []*x509.Certificate{
			{Subject: pkix.Name{Organization: []string{`example`}}},
		},
	})
	assert.True(identity.IsAnonymous())

	// only the leaf certificate's subject matters
	identity = IdentityFromConnectionState(tls.ConnectionState{
		PeerCertificates: []*x509.Certificate{
			{Subject: pkix.Name{CommonName: `leaf`}},
			{Subject: pkix.Name{CommonName: `intermediate`}},
		},
	})
	assert.Equal(`leaf`, identity.CommonName())
}

func TestIdentityConstructors(t *testing.T) {
	assert := require.New(t)

	assert.True(AnonymousIdentity().IsAnonymous())
	assert.False(AuthenticatedIdentity(`bob`).IsAnonymous())
	assert.Equal(`bob`, AuthenticatedIdentity(`bob`).CommonName())
}
