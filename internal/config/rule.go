package config

// Rule is one configured match/action pair. Exactly one of Forward,
// Respond and Deny must be set.
type Rule struct {
	Name    string         `yaml:"name,omitempty"`
	Match   MatchSpec      `yaml:"match,omitempty"`
	Forward *ForwardAction `yaml:"forward,omitempty"`
	Respond *RespondAction `yaml:"respond,omitempty"`
	Deny    *DenyAction    `yaml:"deny,omitempty"`
}

// MatchSpec is a conjunction of optional matchers. An empty MatchSpec
// matches every request.
type MatchSpec struct {
	Host    *HostMatch    `yaml:"host,omitempty"`
	Path    *PathMatch    `yaml:"path,omitempty"`
	Methods []string      `yaml:"methods,omitempty"`
	Headers []HeaderMatch `yaml:"headers,omitempty"`

	// Expression is a CEL predicate evaluated after every other matcher.
	Expression string `yaml:"expression,omitempty"`
}

// IsEmpty returns true if no matcher is set.
func (m *MatchSpec) IsEmpty() bool {
	return (m.Host == nil || m.Host.IsEmpty()) &&
		(m.Path == nil || m.Path.IsEmpty()) &&
		len(m.Methods) == 0 &&
		len(m.Headers) == 0 &&
		m.Expression == ""
}

// HostMatch matches the request host, exactly or by domain suffix.
type HostMatch struct {
	Exact  string `yaml:"exact,omitempty"`
	Suffix string `yaml:"suffix,omitempty"`
}

// IsEmpty returns true if no host condition is set.
func (h *HostMatch) IsEmpty() bool {
	return h.Exact == "" && h.Suffix == ""
}

// PathMatch matches the request path, exactly or by prefix.
type PathMatch struct {
	Exact  string `yaml:"exact,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
}

// IsEmpty returns true if no path condition is set.
func (p *PathMatch) IsEmpty() bool {
	return p.Exact == "" && p.Prefix == ""
}

// HeaderMatch matches a header by value or by presence.
type HeaderMatch struct {
	Name    string `yaml:"name"`
	Value   string `yaml:"value,omitempty"`
	Present *bool  `yaml:"present,omitempty"`
}

// ForwardAction forwards the request to an upstream authority.
type ForwardAction struct {
	// Upstream is the host:port the request is sent to.
	Upstream string            `yaml:"upstream"`
	Rewrite  *PathRewrite      `yaml:"rewrite,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
}

// PathRewrite transforms the forwarded path. Path replaces the whole
// path; otherwise Regex is applied; otherwise StripPrefix then AddPrefix.
type PathRewrite struct {
	Path        string        `yaml:"path,omitempty"`
	StripPrefix string        `yaml:"stripPrefix,omitempty"`
	AddPrefix   string        `yaml:"addPrefix,omitempty"`
	Regex       *RegexRewrite `yaml:"regex,omitempty"`
}

// RegexRewrite replaces every match of Pattern with Substitution.
type RegexRewrite struct {
	Pattern      string `yaml:"pattern"`
	Substitution string `yaml:"substitution"`
}

// RespondAction answers directly with a static response.
type RespondAction struct {
	Status  int               `yaml:"status,omitempty"`
	Body    string            `yaml:"body,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DenyAction rejects the request with a status and an empty body.
type DenyAction struct {
	Status int `yaml:"status,omitempty"`
}

// ActionCount returns how many actions the rule declares.
func (r *Rule) ActionCount() int {
	n := 0
	if r.Forward != nil {
		n++
	}
	if r.Respond != nil {
		n++
	}
	if r.Deny != nil {
		n++
	}
	return n
}
