package circuit

import (
	"net/http"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/observability"
)

// Default action statuses for rules that leave the status out.
const (
	DefaultRespondStatus = http.StatusOK
	DefaultDenyStatus    = http.StatusForbidden
)

// Option configures Build.
type Option func(*builder)

// WithLogger sets the logger used while building.
func WithLogger(logger observability.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

// WithMetrics records build results on metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(b *builder) {
		b.metrics = metrics
	}
}

type builder struct {
	logger  observability.Logger
	metrics *observability.Metrics
	envOnce func() (*cel.Env, error)
}

// Build compiles rules into a Circuit. Rule order is preserved and a
// synthetic Deny(502) node is appended unless the last rule already
// matches everything. The first rule that cannot be compiled fails the
// whole build with a *BuildError.
func Build(rules []config.Rule, opts ...Option) (*Circuit, error) {
	b := &builder{
		logger:  observability.NopLogger(),
		envOnce: sync.OnceValues(newExpressionEnv),
	}
	for _, opt := range opts {
		opt(b)
	}

	c, err := b.build(rules)
	if err != nil {
		b.metrics.RecordCircuitBuild(0, err)
		b.logger.Error("circuit build failed", observability.Error(err))
		return nil, err
	}

	b.metrics.RecordCircuitBuild(c.Len(), nil)
	b.logger.Info("circuit built",
		observability.Int("rules", len(rules)),
		observability.Int("nodes", c.Len()),
		observability.Bool("synthetic_fallback", c.Fallback().Synthetic),
	)
	return c, nil
}

func (b *builder) build(rules []config.Rule) (*Circuit, error) {
	nodes := make([]*Node, 0, len(rules)+1)
	catchAll := -1

	for i := range rules {
		node, err := b.compileRule(i, &rules[i])
		if err != nil {
			return nil, err
		}

		if catchAll >= 0 {
			b.logger.Warn("rule is unreachable, an earlier rule matches every request",
				observability.Int("rule", i),
				observability.Int("catch_all", catchAll),
			)
		} else if node.Predicate.IsCatchAll() {
			catchAll = i
		}

		nodes = append(nodes, node)
	}

	if len(nodes) == 0 || !nodes[len(nodes)-1].Predicate.IsCatchAll() {
		nodes = append(nodes, fallbackNode())
	}

	return &Circuit{nodes: nodes}, nil
}

func fallbackNode() *Node {
	return &Node{
		Ordinal:   FallbackOrdinal,
		Name:      "fallback",
		Predicate: &Predicate{},
		Action:    &Deny{Status: FallbackStatus},
		Synthetic: true,
	}
}

func (b *builder) compileRule(ordinal int, rule *config.Rule) (*Node, error) {
	for _, method := range rule.Match.Methods {
		if !config.IsStandardMethod(method) {
			b.logger.Warn("rule matches a non-standard method",
				observability.Int("rule", ordinal),
				observability.String("method", method),
			)
		}
	}

	predicate, err := compilePredicate(&rule.Match, b.envOnce)
	if err != nil {
		return nil, newBuildError(ordinal, rule.Name, "invalid match expression", err)
	}

	action, err := compileAction(ordinal, rule)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("compiled rule",
		observability.Int("rule", ordinal),
		observability.String("name", rule.Name),
		observability.String("action", string(action.Kind())),
		observability.Strings("matchers", predicate.Matchers()),
	)

	return &Node{
		Ordinal:   ordinal,
		Name:      rule.Name,
		Predicate: predicate,
		Action:    action,
	}, nil
}

// compileAction converts the rule's single configured action.
func compileAction(ordinal int, rule *config.Rule) (Action, error) {
	if rule.ActionCount() != 1 {
		return nil, newBuildError(ordinal, rule.Name, "exactly one of forward, respond or deny is required", ErrUnknownAction)
	}

	switch {
	case rule.Forward != nil:
		return compileForward(ordinal, rule)

	case rule.Respond != nil:
		status, err := actionStatus(ordinal, rule.Name, rule.Respond.Status, DefaultRespondStatus)
		if err != nil {
			return nil, err
		}
		var body []byte
		if rule.Respond.Body != "" {
			body = []byte(rule.Respond.Body)
		}
		return &Respond{
			Status: status,
			Header: headerFromMap(rule.Respond.Headers),
			Body:   body,
		}, nil

	default:
		status, err := actionStatus(ordinal, rule.Name, rule.Deny.Status, DefaultDenyStatus)
		if err != nil {
			return nil, err
		}
		return &Deny{Status: status}, nil
	}
}

func compileForward(ordinal int, rule *config.Rule) (Action, error) {
	f := rule.Forward
	if f.Upstream == "" {
		return nil, newBuildError(ordinal, rule.Name, "forward upstream is empty", nil)
	}

	rewrite, err := compileRewrite(f.Rewrite)
	if err != nil {
		return nil, newBuildError(ordinal, rule.Name, "invalid path rewrite", err)
	}

	return &Forward{
		Upstream:        f.Upstream,
		Rewrite:         rewrite,
		HeaderOverrides: headerFromMap(f.Headers),
	}, nil
}

func actionStatus(ordinal int, name string, status, def int) (int, error) {
	if status == 0 {
		return def, nil
	}
	if status < 100 || status > 599 {
		return 0, newBuildError(ordinal, name, "status must be between 100 and 599", nil)
	}
	return status, nil
}

// headerFromMap converts configured headers, keeping empty values so
// overrides can express deletion.
func headerFromMap(m map[string]string) http.Header {
	h := make(http.Header, len(m))
	for name, value := range m {
		h[http.CanonicalHeaderKey(name)] = []string{value}
	}
	return h
}
