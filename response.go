package rubyshd

// Response is the terminal value produced by the resolution engine and
// consumed exactly once by Protocol.EncodeResponse.
type Response struct {
	Status      Status
	MediaType   string
	RedirectURI string
	Body        []byte
	Cacheable   bool
}

func NewResponse(status Status, mediaType string, body []byte, cacheable bool) *Response {
	return &Response{
		Status:    status,
		MediaType: mediaType,
		Body:      body,
		Cacheable: cacheable,
	}
}

// NewResponseForStatus builds the fixed plain-text rendition of a status,
// used when no error document is available.
func NewResponseForStatus(status Status) *Response {
	return &Response{
		Status:    status,
		MediaType: `text/plain`,
		Body:      []byte(status.String()),
	}
}

func NewRedirectResponse(status Status, redirectURI string) *Response {
	return &Response{
		Status:      status,
		RedirectURI: redirectURI,
	}
}
