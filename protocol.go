package rubyshd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Protocol identifies which of the two wire protocols a request arrived in.
// It owns the per-variant status tables, media-type defaults, recognized
// content extensions, request decoding and response encoding.
type Protocol int

const (
	ProtocolGemini Protocol = iota
	ProtocolHttps
)

const cacheableMaxAgeSeconds = 14400

var geminiSchemePrefix = []byte(`gemini:`)

func (self Protocol) String() string {
	if self == ProtocolGemini {
		return `Gemini`
	}

	return `HTTPS`
}

func (self Protocol) MediaType() string {
	if self == ProtocolGemini {
		return `text/gemini`
	}

	return `text/html; charset=utf-8`
}

// FileExtensions returns the content extensions recognized for this protocol,
// in negotiation order.
func (self Protocol) FileExtensions() []string {
	if self == ProtocolGemini {
		return []string{`gmi`}
	}

	return []string{`html`, `htm`}
}

func (self Protocol) Other() Protocol {
	if self == ProtocolGemini {
		return ProtocolHttps
	}

	return ProtocolGemini
}

// DetectProtocol inspects the raw request bytes: requests opening with the
// gemini scheme are Gemini, everything else is treated as HTTP.
func DetectProtocol(raw []byte) Protocol {
	if bytes.HasPrefix(raw, geminiSchemePrefix) {
		return ProtocolGemini
	}

	return ProtocolHttps
}

func (self Protocol) wireStatus(status Status) (int, string) {
	if self == ProtocolGemini {
		switch status {
		case StatusSuccess:
			return 20, ``
		case StatusTemporaryRedirect:
			return 30, ``
		case StatusPermanentRedirect:
			return 31, ``
		case StatusUnauthenticated:
			return 60, `Unauthorized`
		case StatusUnauthorized:
			return 61, `Forbidden`
		case StatusNotFound:
			return 51, `Not Found`
		case StatusRequestTooLarge:
			return 59, `Payload Too Large`
		case StatusRateLimit:
			return 44, `Too Many Requests`
		case StatusOtherServerError:
			return 40, `Internal Server Error`
		default:
			return 59, `Bad Request`
		}
	}

	switch status {
	case StatusSuccess:
		return 200, `OK`
	case StatusPermanentRedirect:
		return 301, `Moved Permanently`
	case StatusTemporaryRedirect:
		return 302, `Found`
	case StatusOtherClientError:
		return 400, `Bad Request`
	case StatusUnauthenticated:
		// intentionally not the RFC's "Unauthorized"
		return 401, `Unauthenticated`
	case StatusUnauthorized:
		return 403, `Forbidden`
	case StatusNotFound:
		return 404, `Not Found`
	case StatusRequestTooLarge:
		return 413, `Payload Too Large`
	case StatusRateLimit:
		return 429, `Too Many Requests`
	default:
		return 500, `Internal Server Error`
	}
}

// firstLine truncates a header value to its first line, defending against
// header injection via embedded newlines.
func firstLine(value string) string {
	if i := strings.IndexAny(value, "\r\n"); i >= 0 {
		return value[:i]
	}

	return value
}

// EncodeResponse writes a Response to the stream in this protocol's wire
// format.
func (self Protocol) EncodeResponse(w io.Writer, response *Response) error {
	var code, reason = self.wireStatus(response.Status)

	if self == ProtocolGemini {
		var meta string

		switch response.Status {
		case StatusSuccess:
			meta = response.MediaType
		case StatusTemporaryRedirect, StatusPermanentRedirect:
			meta = response.RedirectURI
		default:
			meta = reason
		}

		if _, err := fmt.Fprintf(w, "%d %s\r\n", code, firstLine(meta)); err != nil {
			return err
		}

		// the body only goes out on the wire for a success
		if code == 20 {
			if _, err := w.Write(response.Body); err != nil {
				return err
			}
		}

		return nil
	}

	type headerEntry struct {
		name  string
		value string
	}

	var headers = []headerEntry{
		{`Content-Length`, fmt.Sprintf("%d", len(response.Body))},
	}

	if len(response.Body) > 0 {
		var maxAge = 0

		if response.Cacheable && response.Status == StatusSuccess {
			maxAge = cacheableMaxAgeSeconds
		}

		headers = append(headers,
			headerEntry{`Content-Type`, response.MediaType},
			headerEntry{`Cache-Control`, fmt.Sprintf("public, max-age=%d, must-revalidate", maxAge)},
		)
	}

	headers = append(headers, headerEntry{`Server`, ApplicationName})

	if code == 301 || code == 302 {
		headers = append(headers, headerEntry{`Location`, response.RedirectURI})
	}

	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", code, firstLine(reason)); err != nil {
		return err
	}

	for _, entry := range headers {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", firstLine(entry.name), firstLine(entry.value)); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return err
	}

	if _, err := w.Write(response.Body); err != nil {
		return err
	}

	_, err := io.WriteString(w, "\r\n")
	return err
}

// DecodeError reports a request that could not be decoded, carrying the
// protocol whose encoding the synthesized error response must use.
type DecodeError struct {
	Protocol Protocol
	Status   Status
	msg      string
}

func (self *DecodeError) Error() string {
	return self.msg
}

func decodeErrorf(protocol Protocol, status Status, format string, args ...interface{}) *DecodeError {
	return &DecodeError{
		Protocol: protocol,
		Status:   status,
		msg:      fmt.Sprintf(format, args...),
	}
}

// DecodeRequest parses the raw request bytes into a Request.  Gemini requests
// are a single absolute-URL line; everything else goes through the standard
// incremental HTTP header parser.
func DecodeRequest(context *ServerContext, peerAddr net.Addr, identity Identity, raw []byte) (*Request, *DecodeError) {
	if DetectProtocol(raw) == ProtocolGemini {
		if !utf8.Valid(raw) {
			return nil, decodeErrorf(ProtocolGemini, StatusOtherClientError,
				"request looks like gemini but is not a valid UTF-8 sequence")
		}

		var line = string(raw)

		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		} else if len(raw) >= context.Config().MaxRequestHeaderSize {
			// the buffer filled without ever seeing a line terminator
			return nil, decodeErrorf(ProtocolGemini, StatusRequestTooLarge,
				"gemini request line exceeds the read buffer")
		}

		line = strings.TrimRight(line, "\r")

		requestURL, err := url.Parse(line)

		if err != nil {
			return nil, decodeErrorf(ProtocolGemini, StatusOtherClientError,
				"error parsing gemini url: %v", err)
		}

		if requestURL.Scheme != `gemini` || requestURL.Host == `` {
			return nil, decodeErrorf(ProtocolGemini, StatusOtherClientError,
				"gemini request url must be absolute")
		}

		return NewRequest(context, peerAddr, requestURL, identity), nil
	}

	httpRequest, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(raw)))

	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, decodeErrorf(ProtocolHttps, StatusRequestTooLarge,
				"http request is too large")
		}

		return nil, decodeErrorf(ProtocolHttps, StatusOtherClientError,
			"error parsing http request: %v", err)
	}

	var hostname = httpRequest.Host

	if hostname == `` {
		hostname = context.Config().DefaultHostname
	}

	requestURL, err := url.Parse(fmt.Sprintf("https://%s%s", hostname, httpRequest.URL.RequestURI()))

	if err != nil {
		return nil, decodeErrorf(ProtocolHttps, StatusOtherClientError,
			"error converting http request to a url: %v", err)
	}

	return NewRequest(context, peerAddr, requestURL, identity), nil
}
