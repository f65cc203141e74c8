package rebound

import (
	"net/http"
	"strconv"
)

// Response is the canonical response produced for a Request.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse creates a response with the given status, headers and body.
// A nil header map is replaced with an empty one.
func NewResponse(status int, header http.Header, body []byte) *Response {
	if header == nil {
		header = make(http.Header)
	}
	return &Response{Status: status, Header: header, Body: body}
}

// StatusResponse creates a response with the given status and an empty body.
func StatusResponse(status int) *Response {
	return NewResponse(status, nil, nil)
}

// WriteTo writes the response to an http.ResponseWriter.
func (r *Response) WriteTo(w http.ResponseWriter) error {
	h := w.Header()
	for name, values := range r.Header {
		h[name] = append([]string(nil), values...)
	}
	if len(r.Body) > 0 && h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}
