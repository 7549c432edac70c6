package rubyshd

import (
	"fmt"
	"net"
	"net/url"
	"runtime"
)

// Request is the per-connection value object combining peer address, resolved
// URL, identity, detected protocol and the mutable template-rendering
// context.
type Request struct {
	TemplateContext *TemplateContext

	context  *ServerContext
	peerAddr net.Addr
	url      *url.URL
	identity Identity
}

// TemplateContext is the per-request bag of values visible to templates.  It
// is owned exclusively by its Request: mutated only during resolution,
// read-only during rendering.
type TemplateContext struct {
	Meta            map[string]interface{}
	Data            map[string]interface{}
	Posts           []PageMetadata
	PeerAddr        string
	Path            string
	IsAuthenticated bool
	IsAnonymous     bool
	CommonName      string
	Protocol        Protocol
	Markup          Markup
	IsGemini        bool
	IsHttps         bool
	OsPlatform      string
}

func NewRequest(context *ServerContext, peerAddr net.Addr, requestURL *url.URL, identity Identity) *Request {
	var protocol = ProtocolHttps

	if requestURL.Scheme == `gemini` {
		protocol = ProtocolGemini
	}

	return &Request{
		TemplateContext: &TemplateContext{
			Meta:            make(map[string]interface{}),
			Data:            context.GlobalData(),
			Posts:           context.Posts(protocol),
			PeerAddr:        peerAddr.String(),
			Path:            requestURL.Path,
			IsAuthenticated: !identity.IsAnonymous(),
			IsAnonymous:     identity.IsAnonymous(),
			CommonName:      identity.CommonName(),
			Protocol:        protocol,
			Markup:          DefaultMarkupForProtocol(protocol),
			IsGemini:        protocol == ProtocolGemini,
			IsHttps:         protocol == ProtocolHttps,
			OsPlatform:      runtime.GOOS,
		},
		context:  context,
		peerAddr: peerAddr,
		url:      requestURL,
		identity: identity,
	}
}

func (self *Request) ServerContext() *ServerContext {
	return self.context
}

func (self *Request) PeerAddr() net.Addr {
	return self.peerAddr
}

func (self *Request) URL() *url.URL {
	return self.url
}

func (self *Request) Path() string {
	return self.url.Path
}

func (self *Request) Identity() Identity {
	return self.identity
}

func (self *Request) Protocol() Protocol {
	return self.TemplateContext.Protocol
}

// logContext is the identity tuple every request-scoped log line carries.
func (self *Request) logContext() string {
	return fmt.Sprintf("[%v] [%v] [%v] [%v]",
		self.Protocol(), self.peerAddr, self.identity, self.Path())
}

// templateData flattens the context into the snake_case keys the content
// tree's templates address.
func (self *TemplateContext) templateData() map[string]interface{} {
	var posts = make([]map[string]interface{}, len(self.Posts))

	for i, post := range self.Posts {
		posts[i] = post.templateData()
	}

	return map[string]interface{}{
		`meta`:             self.Meta,
		`data`:             self.Data,
		`posts`:            posts,
		`peer_addr`:        self.PeerAddr,
		`path`:             self.Path,
		`is_authenticated`: self.IsAuthenticated,
		`is_anonymous`:     self.IsAnonymous,
		`common_name`:      self.CommonName,
		`protocol`:         self.Protocol.String(),
		`markup`:           self.Markup.String(),
		`is_gemini`:        self.IsGemini,
		`is_https`:         self.IsHttps,
		`os_platform`:      self.OsPlatform,
	}
}
