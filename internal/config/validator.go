package config

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates rebound configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConfig validates a rebound configuration.
func ValidateConfig(cfg *ReboundConfig) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(cfg *ReboundConfig) error {
	v.errors = make(ValidationErrors, 0)

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateWorkers(&cfg.Workers)
	v.validateOutbound(&cfg.Outbound)
	v.validateRateLimit(cfg.RateLimit)
	v.validateLogging(&cfg.Logging)
	v.validateTracing(&cfg.Tracing)
	for i := range cfg.Rules {
		v.validateRule(i, &cfg.Rules[i])
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateWorkers(w *WorkersConfig) {
	if w.Count < 1 {
		v.addError("workers.count", "must be at least 1")
	}
	if w.QueueSize < 0 {
		v.addError("workers.queueSize", "must not be negative")
	}
	switch w.Admission {
	case AdmissionBlock, AdmissionReject:
	default:
		v.addError("workers.admission", fmt.Sprintf("unknown policy %q (want block or reject)", w.Admission))
	}
}

func (v *Validator) validateOutbound(o *OutboundConfig) {
	if !validScheme(o.Scheme) {
		v.addError("outbound.scheme", fmt.Sprintf("unsupported scheme %q", o.Scheme))
	}
	if o.Timeout < 0 {
		v.addError("outbound.timeout", "must not be negative")
	}
	for authority, u := range o.Upstreams {
		path := fmt.Sprintf("outbound.upstreams[%s]", authority)
		if u.Scheme != "" && !validScheme(u.Scheme) {
			v.addError(path+".scheme", fmt.Sprintf("unsupported scheme %q", u.Scheme))
		}
		if u.Timeout < 0 {
			v.addError(path+".timeout", "must not be negative")
		}
	}
	if cb := o.CircuitBreaker; cb != nil && cb.Enabled {
		if cb.MaxFailures < 1 {
			v.addError("outbound.circuitBreaker.maxFailures", "must be at least 1")
		}
		if cb.HalfOpenMax < 1 {
			v.addError("outbound.circuitBreaker.halfOpenMax", "must be at least 1")
		}
	}
}

func (v *Validator) validateRateLimit(rl *RateLimitConfig) {
	if rl == nil || !rl.Enabled {
		return
	}
	if rl.RequestsPerSecond < 1 {
		v.addError("rateLimit.requestsPerSecond", "must be at least 1")
	}
	if rl.Burst < 1 {
		v.addError("rateLimit.burst", "must be at least 1")
	}
}

func (v *Validator) validateLogging(l *LoggingConfig) {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		v.addError("logging.level", fmt.Sprintf("unknown level %q", l.Level))
	}
	switch l.Format {
	case "json", "console":
	default:
		v.addError("logging.format", fmt.Sprintf("unknown format %q", l.Format))
	}
}

func (v *Validator) validateTracing(t *TracingConfig) {
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		v.addError("tracing.samplingRate", "must be between 0 and 1")
	}
}

// validateRule validates one rule. Action kind problems are also reported
// by the circuit builder; they are caught here to fail before startup.
func (v *Validator) validateRule(i int, r *Rule) {
	path := fmt.Sprintf("rules[%d]", i)

	switch r.ActionCount() {
	case 0:
		v.addError(path, "one of forward, respond or deny is required")
	case 1:
	default:
		v.addError(path, "only one of forward, respond or deny may be set")
	}

	v.validateMatch(path+".match", &r.Match)

	if f := r.Forward; f != nil {
		if f.Upstream == "" {
			v.addError(path+".forward.upstream", "upstream is required")
		} else if strings.Contains(f.Upstream, "/") {
			v.addError(path+".forward.upstream", "upstream must be a host:port authority")
		}
		if rw := f.Rewrite; rw != nil && rw.Regex != nil {
			if _, err := regexp.Compile(rw.Regex.Pattern); err != nil {
				v.addError(path+".forward.rewrite.regex.pattern", err.Error())
			}
		}
	}
	if r.Respond != nil && r.Respond.Status != 0 {
		v.validateStatus(path+".respond.status", r.Respond.Status)
	}
	if r.Deny != nil && r.Deny.Status != 0 {
		v.validateStatus(path+".deny.status", r.Deny.Status)
	}
}

func (v *Validator) validateMatch(path string, m *MatchSpec) {
	if h := m.Host; h != nil && h.Exact != "" && h.Suffix != "" {
		v.addError(path+".host", "only one of exact or suffix may be set")
	}
	if p := m.Path; p != nil {
		if p.Exact != "" && p.Prefix != "" {
			v.addError(path+".path", "only one of exact or prefix may be set")
		}
		for _, s := range []string{p.Exact, p.Prefix} {
			if s != "" && !strings.HasPrefix(s, "/") {
				v.addError(path+".path", fmt.Sprintf("path %q must start with /", s))
			}
		}
	}
	for j, method := range m.Methods {
		if method == "" {
			v.addError(fmt.Sprintf("%s.methods[%d]", path, j), "method must not be empty")
		}
	}
	for j, h := range m.Headers {
		hp := fmt.Sprintf("%s.headers[%d]", path, j)
		if h.Name == "" {
			v.addError(hp+".name", "header name is required")
		}
		if h.Present != nil && h.Value != "" {
			v.addError(hp, "only one of value or present may be set")
		}
	}
}

func (v *Validator) validateStatus(path string, status int) {
	if status < 100 || status > 599 {
		v.addError(path, fmt.Sprintf("invalid HTTP status %d", status))
	}
}

// addError adds a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func validScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

// httpMethods lists the methods accepted without a warning.
var httpMethods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodPost: true,
	http.MethodPut: true, http.MethodPatch: true, http.MethodDelete: true,
	http.MethodConnect: true, http.MethodOptions: true, http.MethodTrace: true,
	"*": true,
}

// IsStandardMethod returns true for the standard HTTP methods and "*".
func IsStandardMethod(method string) bool {
	return httpMethods[strings.ToUpper(method)]
}
