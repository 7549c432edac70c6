package rubyshd

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/ghetzel/go-stockutil/log"
)

const connectionIOTimeout = 30 * time.Second

// Server accepts TLS connections and serves one request per connection, as
// both wire protocols expect.
type Server struct {
	context   *ServerContext
	tlsConfig *tls.Config
}

func NewServer(context *ServerContext) (*Server, error) {
	var tlsConfig, err = NewTLSConfig(context.Config())

	if err != nil {
		return nil, err
	}

	return &Server{
		context:   context,
		tlsConfig: tlsConfig,
	}, nil
}

// ListenAndServe binds the configured TLS listener and serves until the
// listener fails.  Each connection is handled on its own goroutine.
func (self *Server) ListenAndServe() error {
	var config = self.context.Config()
	var listener, err = tls.Listen(`tcp`, config.TLSListenBind, self.tlsConfig)

	if err != nil {
		return err
	}

	defer listener.Close()
	log.Infof("%s listening on %s", ApplicationName, config.TLSListenBind)

	for {
		conn, err := listener.Accept()

		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				log.Warningf("transient accept error: %v", err)
				continue
			}

			return err
		}

		go self.handleConnection(conn)
	}
}

// handleConnection runs the full lifecycle of one connection: handshake,
// identity extraction, header read, decode, resolve, encode.  Decode failures
// are still answered on the wire, in the detected protocol's encoding.
func (self *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	var deadline = time.Now().Add(connectionIOTimeout)

	if err := conn.SetDeadline(deadline); err != nil {
		log.Warningf("error setting connection deadline for %v: %v", conn.RemoteAddr(), err)
	}

	tlsConn, ok := conn.(*tls.Conn)

	if !ok {
		log.Errorf("accepted a non-TLS connection from %v", conn.RemoteAddr())
		return
	}

	if err := tlsConn.Handshake(); err != nil {
		log.Errorf("TLS handshake failed for %v: %v", conn.RemoteAddr(), err)
		return
	}

	var identity = IdentityFromConnectionState(tlsConn.ConnectionState())
	var raw, err = self.readRequestHeader(tlsConn)

	if err != nil {
		log.Errorf("error reading request from %v: %v", conn.RemoteAddr(), err)
		return
	}

	var response *Response
	var protocol Protocol

	request, derr := DecodeRequest(self.context, conn.RemoteAddr(), identity, raw)

	if derr != nil {
		log.Errorf("[%v] [%v] [%v] decode error: %v", derr.Protocol, conn.RemoteAddr(), identity, derr)
		protocol = derr.Protocol
		response = NewResponseForStatus(derr.Status)
	} else {
		protocol = request.Protocol()
		response = ResolveRequest(request)
	}

	if err := protocol.EncodeResponse(tlsConn, response); err != nil {
		log.Errorf("error writing response to %v: %v", conn.RemoteAddr(), err)
	}
}

// readRequestHeader reads until the request header is complete: a line
// terminator for Gemini, a blank line for HTTP, or the configured size cap,
// whichever comes first.  Decoding decides whether a capped read is an
// oversize request.
func (self *Server) readRequestHeader(conn net.Conn) ([]byte, error) {
	var max = self.context.Config().MaxRequestHeaderSize
	var buf = make([]byte, max)
	var filled int

	for filled < max {
		var n, err = conn.Read(buf[filled:])
		filled += n

		if headerComplete(buf[:filled]) {
			break
		}

		if err != nil {
			if filled > 0 {
				break
			}

			return nil, err
		}
	}

	return buf[:filled], nil
}

func headerComplete(raw []byte) bool {
	if DetectProtocol(raw) == ProtocolGemini {
		return hasLineTerminator(raw)
	}

	return hasBlankLine(raw)
}

func hasLineTerminator(raw []byte) bool {
	for _, b := range raw {
		if b == '\n' {
			return true
		}
	}

	return false
}

func hasBlankLine(raw []byte) bool {
	for i := 0; i+1 < len(raw); i++ {
		if raw[i] == '\n' && (raw[i+1] == '\n' || (raw[i+1] == '\r' && i+2 < len(raw) && raw[i+2] == '\n')) {
			return true
		}
	}

	return false
}
