package circuit

import (
	"github.com/google/cel-go/cel"

	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/rebound"
)

// Predicate is a compiled MatchSpec: a conjunction of matchers checked
// cheapest first (method, host, path, headers, expression). An empty
// predicate matches every request.
type Predicate struct {
	matchers []Matcher
}

// compilePredicate compiles a MatchSpec into a Predicate.
func compilePredicate(spec *config.MatchSpec, env func() (*cel.Env, error)) (*Predicate, error) {
	p := &Predicate{}

	if len(spec.Methods) > 0 {
		p.matchers = append(p.matchers, NewMethodMatcher(spec.Methods))
	}

	if spec.Host != nil && !spec.Host.IsEmpty() {
		p.matchers = append(p.matchers, NewHostMatcher(spec.Host))
	}

	if spec.Path != nil {
		switch {
		case spec.Path.Exact != "":
			p.matchers = append(p.matchers, NewExactMatcher(spec.Path.Exact))
		case spec.Path.Prefix != "":
			p.matchers = append(p.matchers, NewPrefixMatcher(spec.Path.Prefix))
		}
	}

	for _, h := range spec.Headers {
		p.matchers = append(p.matchers, NewHeaderMatcher(h))
	}

	if spec.Expression != "" {
		celEnv, err := env()
		if err != nil {
			return nil, err
		}
		m, err := NewExpressionMatcher(celEnv, spec.Expression)
		if err != nil {
			return nil, err
		}
		p.matchers = append(p.matchers, m)
	}

	return p, nil
}

// Match reports whether every matcher accepts the request.
func (p *Predicate) Match(req *rebound.Request) bool {
	for _, m := range p.matchers {
		if !m.Match(req) {
			return false
		}
	}
	return true
}

// IsCatchAll reports whether the predicate matches every request.
func (p *Predicate) IsCatchAll() bool {
	return len(p.matchers) == 0
}

// Matchers returns the matcher types in evaluation order.
func (p *Predicate) Matchers() []string {
	types := make([]string, len(p.matchers))
	for i, m := range p.matchers {
		types[i] = m.Type()
	}
	return types
}
