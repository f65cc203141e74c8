package circuit

import (
	"net"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/rebound"
)

// Matcher tests one aspect of a request.
type Matcher interface {
	Match(req *rebound.Request) bool
	Type() string
}

// MethodMatcher matches HTTP methods, case-insensitively. "*" matches
// every method.
type MethodMatcher struct {
	methods map[string]bool
	any     bool
}

// NewMethodMatcher creates a new method matcher.
func NewMethodMatcher(methods []string) *MethodMatcher {
	m := &MethodMatcher{
		methods: make(map[string]bool, len(methods)),
	}

	for _, method := range methods {
		method = strings.ToUpper(strings.TrimSpace(method))
		if method == "*" {
			m.any = true
		}
		m.methods[method] = true
	}

	return m
}

// Match checks if the method matches.
func (m *MethodMatcher) Match(req *rebound.Request) bool {
	if m.any {
		return true
	}
	return m.methods[strings.ToUpper(req.Method)]
}

// Type returns the matcher type.
func (m *MethodMatcher) Type() string {
	return "method"
}

// HostMatcher matches the request host without its port.
type HostMatcher struct {
	exact  string
	suffix string

	// subdomainsOnly is set for ".example.com" and "*.example.com".
	subdomainsOnly bool
}

// NewHostMatcher creates a host matcher from its configuration.
func NewHostMatcher(cfg *config.HostMatch) *HostMatcher {
	if cfg.Exact != "" {
		return &HostMatcher{exact: normalizeHost(cfg.Exact)}
	}

	suffix := strings.ToLower(strings.TrimSuffix(cfg.Suffix, "."))
	m := &HostMatcher{}
	switch {
	case strings.HasPrefix(suffix, "*."):
		m.suffix = suffix[2:]
		m.subdomainsOnly = true
	case strings.HasPrefix(suffix, "."):
		m.suffix = suffix[1:]
		m.subdomainsOnly = true
	default:
		m.suffix = suffix
	}
	return m
}

// Match checks if the request host matches.
func (m *HostMatcher) Match(req *rebound.Request) bool {
	host := req.Hostname()
	if m.exact != "" {
		return host == m.exact
	}
	if host == m.suffix {
		return !m.subdomainsOnly
	}
	return strings.HasSuffix(host, "."+m.suffix)
}

// Type returns the matcher type.
func (m *HostMatcher) Type() string {
	return "host"
}

func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

// ExactMatcher matches exact paths.
type ExactMatcher struct {
	path string
}

// NewExactMatcher creates a new exact path matcher.
func NewExactMatcher(path string) *ExactMatcher {
	return &ExactMatcher{path: path}
}

// Match checks if the path matches exactly.
func (m *ExactMatcher) Match(req *rebound.Request) bool {
	return req.Path == m.path
}

// Type returns the matcher type.
func (m *ExactMatcher) Type() string {
	return "path_exact"
}

// PrefixMatcher matches path prefixes on segment boundaries.
type PrefixMatcher struct {
	prefix string
}

// NewPrefixMatcher creates a new prefix path matcher.
func NewPrefixMatcher(prefix string) *PrefixMatcher {
	return &PrefixMatcher{prefix: prefix}
}

// Match checks if the path starts with the prefix.
func (m *PrefixMatcher) Match(req *rebound.Request) bool {
	return hasPathPrefix(req.Path, m.prefix)
}

// Type returns the matcher type.
func (m *PrefixMatcher) Type() string {
	return "path_prefix"
}

// hasPathPrefix reports whether prefix covers path. "/api" covers
// "/api" and "/api/x" but not "/apix"; "/api/" covers anything below it.
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	return strings.HasSuffix(prefix, "/") || path[len(prefix)] == '/'
}

// HeaderMatcher matches a header by value or by presence. Without a
// value or a presence flag the header only has to exist.
type HeaderMatcher struct {
	name    string
	value   string
	present *bool
}

// NewHeaderMatcher creates a new header matcher.
func NewHeaderMatcher(cfg config.HeaderMatch) *HeaderMatcher {
	m := &HeaderMatcher{
		name:  http.CanonicalHeaderKey(cfg.Name),
		value: cfg.Value,
	}
	if cfg.Present != nil {
		present := *cfg.Present
		m.present = &present
	}
	return m
}

// Match checks if the headers match. A multi-valued header matches when
// any of its values equals the configured value.
func (m *HeaderMatcher) Match(req *rebound.Request) bool {
	values := req.Header.Values(m.name)
	hasHeader := len(values) > 0

	if m.present != nil {
		return hasHeader == *m.present
	}

	if !hasHeader {
		return false
	}

	if m.value == "" {
		return true
	}

	for _, v := range values {
		if v == m.value {
			return true
		}
	}
	return false
}

// Type returns the matcher type.
func (m *HeaderMatcher) Type() string {
	return "header"
}
