package rubyshd

import (
	"net"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestContext builds a ServerContext over a throwaway content tree with
// every configured root present but empty.
func newTestContext(t *testing.T) (*ServerContext, *Config) {
	t.Helper()

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	var config = &Config{
		PublicRootPath:       filepath.Join(root, `public_root`),
		PartialsPath:         filepath.Join(root, `partials`),
		DataPath:             filepath.Join(root, `data`),
		ErrdocsPath:          filepath.Join(root, `errdocs`),
		MaxRequestHeaderSize: 2048,
		TLSListenBind:        `127.0.0.1:4443`,
		DefaultHostname:      `localhost`,
	}

	for _, dir := range []string{
		config.PublicRootPath,
		config.PartialsPath,
		config.DataPath,
		config.ErrdocsPath,
	} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}

	return NewServerContext(config), config
}

func writeTestFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func testPeerAddr() net.Addr {
	return &net.TCPAddr{
		IP:   net.IPv4(127, 0, 0, 1),
		Port: 56789,
	}
}

func newTestRequest(t *testing.T, context *ServerContext, rawURL string) *Request {
	t.Helper()

	requestURL, err := url.Parse(rawURL)
	require.NoError(t, err)

	return NewRequest(context, testPeerAddr(), requestURL, AnonymousIdentity())
}
