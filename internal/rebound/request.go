package rebound

import (
	"net"
	"net/http"
	"strings"
)

// Request is an inbound request as seen by the routing core.
type Request struct {
	// ID is the request identifier assigned by the accept loop.
	ID string

	Method   string
	Host     string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte

	// RemoteAddr is the client address in host:port form.
	RemoteAddr string

	// TLS reports whether the inbound connection was encrypted.
	TLS bool
}

// NewRequest builds a Request from an *http.Request whose body has
// already been read into body.
func NewRequest(id string, r *http.Request, body []byte) *Request {
	return &Request{
		ID:         id,
		Method:     r.Method,
		Host:       r.Host,
		Path:       r.URL.Path,
		RawQuery:   r.URL.RawQuery,
		Header:     r.Header.Clone(),
		Body:       body,
		RemoteAddr: r.RemoteAddr,
		TLS:        r.TLS != nil,
	}
}

// Hostname returns the lower-cased request host without its port.
func (r *Request) Hostname() string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

// ClientIP returns the client address without its port.
func (r *Request) ClientIP() string {
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

// Clone returns a deep copy of the request. Forward actions rewrite the
// clone so the original stays untouched for logging.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}
