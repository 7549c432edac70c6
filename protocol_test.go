package rubyshd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectProtocol(t *testing.T) {
	assert := require.New(t)

	assert.Equal(ProtocolGemini, DetectProtocol([]byte("gemini://example.org/\r\n")))
	assert.Equal(ProtocolHttps, DetectProtocol([]byte("GET / HTTP/1.1\r\nHost: example.org\r\n\r\n")))
	assert.Equal(ProtocolHttps, DetectProtocol([]byte("https://example.org/\r\n")))
	assert.Equal(ProtocolHttps, DetectProtocol(nil))
}

func TestWireStatusTables(t *testing.T) {
	assert := require.New(t)

	var geminiCodes = map[Status]int{
		StatusSuccess:           20,
		StatusTemporaryRedirect: 30,
		StatusPermanentRedirect: 31,
		StatusUnauthenticated:   60,
		StatusUnauthorized:      61,
		StatusNotFound:          51,
		StatusRequestTooLarge:   59,
		StatusRateLimit:         44,
		StatusOtherServerError:  40,
		StatusOtherClientError:  59,
	}

	var httpsCodes = map[Status]int{
		StatusSuccess:           200,
		StatusTemporaryRedirect: 302,
		StatusPermanentRedirect: 301,
		StatusUnauthenticated:   401,
		StatusUnauthorized:      403,
		StatusNotFound:          404,
		StatusRequestTooLarge:   413,
		StatusRateLimit:         429,
		StatusOtherServerError:  500,
		StatusOtherClientError:  400,
	}

	for _, status := range allStatuses {
		code, _ := ProtocolGemini.wireStatus(status)
		assert.Equal(geminiCodes[status], code, `gemini code for %v`, status)

		code, reason := ProtocolHttps.wireStatus(status)
		assert.Equal(httpsCodes[status], code, `https code for %v`, status)
		assert.NotEmpty(reason)
	}

	// deliberately not the RFC's "Unauthorized"
	_, reason := ProtocolHttps.wireStatus(StatusUnauthenticated)
	assert.Equal(`Unauthenticated`, reason)
}

func TestEncodeGeminiResponse(t *testing.T) {
	assert := require.New(t)

	var buf bytes.Buffer
	assert.NoError(ProtocolGemini.EncodeResponse(&buf,
		NewResponse(StatusSuccess, `text/gemini`, []byte("# hi\n"), true)))
	assert.Equal("20 text/gemini\r\n# hi\n", buf.String())

	// the body only ships on a success
	buf.Reset()
	assert.NoError(ProtocolGemini.EncodeResponse(&buf, NewResponseForStatus(StatusNotFound)))
	assert.Equal("51 Not Found\r\n", buf.String())

	buf.Reset()
	assert.NoError(ProtocolGemini.EncodeResponse(&buf,
		NewRedirectResponse(StatusTemporaryRedirect, `gemini://example.org/there`)))
	assert.Equal("30 gemini://example.org/there\r\n", buf.String())
}

func TestEncodeHttpsResponse(t *testing.T) {
	assert := require.New(t)

	var buf bytes.Buffer
	assert.NoError(ProtocolHttps.EncodeResponse(&buf,
		NewResponse(StatusSuccess, `text/html; charset=utf-8`, []byte(`<p>hi</p>`), true)))

	var encoded = buf.String()
	assert.True(strings.HasPrefix(encoded, "HTTP/1.1 200 OK\r\n"), encoded)
	assert.Contains(encoded, "Content-Length: 9\r\n")
	assert.Contains(encoded, "Content-Type: text/html; charset=utf-8\r\n")
	assert.Contains(encoded, "Cache-Control: public, max-age=14400, must-revalidate\r\n")
	assert.Contains(encoded, "Server: "+ApplicationName+"\r\n")
	assert.True(strings.HasSuffix(encoded, "\r\n\r\n<p>hi</p>\r\n"), encoded)

	// rendered output is never wire-cacheable
	buf.Reset()
	assert.NoError(ProtocolHttps.EncodeResponse(&buf,
		NewResponse(StatusSuccess, `text/html; charset=utf-8`, []byte(`<p>hi</p>`), false)))
	assert.Contains(buf.String(), "Cache-Control: public, max-age=0, must-revalidate\r\n")

	buf.Reset()
	assert.NoError(ProtocolHttps.EncodeResponse(&buf,
		NewRedirectResponse(StatusPermanentRedirect, `https://example.org/there`)))

	encoded = buf.String()
	assert.True(strings.HasPrefix(encoded, "HTTP/1.1 301 Moved Permanently\r\n"), encoded)
	assert.Contains(encoded, "Location: https://example.org/there\r\n")
	assert.Contains(encoded, "Content-Length: 0\r\n")
	assert.NotContains(encoded, `Content-Type`)
	assert.NotContains(encoded, `Cache-Control`)
}

func TestEncodeResponseSanitizesHeaderValues(t *testing.T) {
	assert := require.New(t)

	var buf bytes.Buffer
	assert.NoError(ProtocolHttps.EncodeResponse(&buf,
		NewResponse(StatusSuccess, "text/plain\r\nX-Injected: 1", []byte(`x`), false)))
	assert.Contains(buf.String(), "Content-Type: text/plain\r\n")
	assert.NotContains(buf.String(), `X-Injected`)

	buf.Reset()
	assert.NoError(ProtocolGemini.EncodeResponse(&buf,
		NewResponse(StatusSuccess, "text/plain\r\n20 smuggled", nil, false)))
	assert.Equal("20 text/plain\r\n", buf.String())
}

func TestDecodeGeminiRequest(t *testing.T) {
	assert := require.New(t)
	context, _ := newTestContext(t)

	request, derr := DecodeRequest(context, testPeerAddr(), AnonymousIdentity(),
		[]byte("gemini://localhost/hello?x=1\r\n"))
	assert.Nil(derr)
	assert.Equal(ProtocolGemini, request.Protocol())
	assert.Equal(`/hello`, request.Path())
	assert.True(request.TemplateContext.IsGemini)
	assert.Equal(MarkupGemtext, request.TemplateContext.Markup)

	// a short buffer without a terminator is a client that closed early,
	// not an oversize request: the whole buffer parses as the url line
	request, derr = DecodeRequest(context, testPeerAddr(), AnonymousIdentity(),
		[]byte(`gemini://localhost/early`))
	assert.Nil(derr)
	assert.Equal(`/early`, request.Path())

	// only a full buffer without a terminator is oversize
	var full = `gemini://localhost/` + strings.Repeat(`a`,
		context.Config().MaxRequestHeaderSize-len(`gemini://localhost/`))
	_, derr = DecodeRequest(context, testPeerAddr(), AnonymousIdentity(), []byte(full))
	assert.NotNil(derr)
	assert.Equal(ProtocolGemini, derr.Protocol)
	assert.Equal(StatusRequestTooLarge, derr.Status)

	// relative gemini urls are not acceptable
	_, derr = DecodeRequest(context, testPeerAddr(), AnonymousIdentity(),
		[]byte("gemini:hello\r\n"))
	assert.NotNil(derr)
	assert.Equal(StatusOtherClientError, derr.Status)

	_, derr = DecodeRequest(context, testPeerAddr(), AnonymousIdentity(),
		append([]byte(`gemini:`), 0xff, 0xfe, '\n'))
	assert.NotNil(derr)
	assert.Equal(StatusOtherClientError, derr.Status)
}

func TestDecodeHttpRequest(t *testing.T) {
	assert := require.New(t)
	context, _ := newTestContext(t)

	request, derr := DecodeRequest(context, testPeerAddr(), AnonymousIdentity(),
		[]byte("GET /hello HTTP/1.1\r\nHost: example.org\r\n\r\n"))
	assert.Nil(derr)
	assert.Equal(ProtocolHttps, request.Protocol())
	assert.Equal(`/hello`, request.Path())
	assert.Equal(`example.org`, request.URL().Host)
	assert.Equal(`https`, request.URL().Scheme)

	// a missing Host falls back to the configured default hostname
	request, derr = DecodeRequest(context, testPeerAddr(), AnonymousIdentity(),
		[]byte("GET / HTTP/1.0\r\n\r\n"))
	assert.Nil(derr)
	assert.Equal(`localhost`, request.URL().Host)

	// headers truncated by the read cap decode as an oversize request
	_, derr = DecodeRequest(context, testPeerAddr(), AnonymousIdentity(),
		[]byte("GET / HTTP/1.1\r\nHost: exam"))
	assert.NotNil(derr)
	assert.Equal(ProtocolHttps, derr.Protocol)
	assert.Equal(StatusRequestTooLarge, derr.Status)

	_, derr = DecodeRequest(context, testPeerAddr(), AnonymousIdentity(),
		[]byte("total garbage\r\n\r\n"))
	assert.NotNil(derr)
	assert.Equal(StatusOtherClientError, derr.Status)
}
