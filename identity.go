package rubyshd

import "crypto/tls"

const anonymousName = `anonymous`

// Identity is the client identity derived once per connection from the TLS
// peer certificate chain.  Extraction never fails: any absent or unusable
// certificate yields the anonymous identity.
type Identity struct {
	commonName string
}

func AnonymousIdentity() Identity {
	return Identity{}
}

func AuthenticatedIdentity(commonName string) Identity {
	return Identity{commonName: commonName}
}

// IdentityFromConnectionState extracts the subject common name of the first
// verified peer certificate, if any.
func IdentityFromConnectionState(state tls.ConnectionState) Identity {
	if len(state.PeerCertificates) == 0 {
		return AnonymousIdentity()
	}

	if cn := state.PeerCertificates[0].Subject.CommonName; cn != `` {
		return AuthenticatedIdentity(cn)
	}

	return AnonymousIdentity()
}

func (self Identity) IsAnonymous() bool {
	return self.commonName == ``
}

func (self Identity) CommonName() string {
	if self.commonName == `` {
		return anonymousName
	}

	return self.commonName
}

func (self Identity) String() string {
	return self.CommonName()
}
