package circuit

import (
	"net/http"

	"github.com/vyrodovalexey/rebound/internal/rebound"
)

// Action is the closed set of things a node can do with a request:
// Forward, Respond or Deny. The unexported method keeps the set sealed.
type Action interface {
	Kind() rebound.ActionKind
	sealed()
}

// Forward sends a rewritten copy of the request to an upstream authority.
type Forward struct {
	// Upstream is the host:port the request is addressed to.
	Upstream string

	// Rewrite transforms the path; nil keeps it unchanged.
	Rewrite *PathRewrite

	// HeaderOverrides are set on the forwarded request. An empty value
	// removes the header.
	HeaderOverrides http.Header
}

// Respond answers with a static response.
type Respond struct {
	Status int
	Header http.Header
	Body   []byte
}

// Deny rejects the request with a status and an empty body.
type Deny struct {
	Status int
}

// Kind implements Action.
func (*Forward) Kind() rebound.ActionKind { return rebound.ActionForward }

// Kind implements Action.
func (*Respond) Kind() rebound.ActionKind { return rebound.ActionRespond }

// Kind implements Action.
func (*Deny) Kind() rebound.ActionKind { return rebound.ActionDeny }

func (*Forward) sealed() {}
func (*Respond) sealed() {}
func (*Deny) sealed()    {}

// Apply returns the request to send upstream. The original request is
// never modified.
func (f *Forward) Apply(req *rebound.Request) *rebound.Request {
	out := req.Clone()
	if f.Rewrite != nil {
		out.Path = f.Rewrite.Apply(out.Path)
	}
	for name, values := range f.HeaderOverrides {
		if len(values) == 0 || values[0] == "" {
			out.Header.Del(name)
			continue
		}
		out.Header[name] = append([]string(nil), values...)
	}
	return out
}

// Response builds the static response. Each call returns a fresh value
// so callers may modify it.
func (r *Respond) Response() *rebound.Response {
	var body []byte
	if len(r.Body) > 0 {
		body = append([]byte(nil), r.Body...)
	}
	return rebound.NewResponse(r.Status, r.Header.Clone(), body)
}

// Response builds the deny response.
func (d *Deny) Response() *rebound.Response {
	return rebound.StatusResponse(d.Status)
}
