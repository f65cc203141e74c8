package circuit

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/vyrodovalexey/rebound/internal/rebound"
)

// newExpressionEnv creates the CEL environment rule expressions are
// compiled against.
//
// Variables: method, host, path, query, client_ip (strings) and headers
// (map of lower-cased header name to its first value).
// Functions: ip_in_range(ip, cidr).
func newExpressionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("method", cel.StringType),
		cel.Variable("host", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("query", cel.StringType),
		cel.Variable("client_ip", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),

		cel.Function("ip_in_range",
			cel.Overload("ip_in_range_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(ipInRangeBinding),
			),
		),
	)
}

// ipInRangeBinding checks if an IP is in a CIDR range.
func ipInRangeBinding(ip, cidr ref.Val) ref.Val {
	ipStr, ok := ip.Value().(string)
	if !ok {
		return types.False
	}
	cidrStr, ok := cidr.Value().(string)
	if !ok {
		return types.False
	}

	parsedIP := net.ParseIP(ipStr)
	if parsedIP == nil {
		return types.False
	}

	_, network, err := net.ParseCIDR(cidrStr)
	if err != nil {
		return types.False
	}

	return types.Bool(network.Contains(parsedIP))
}

// ExpressionMatcher evaluates a compiled CEL predicate. Evaluation
// errors count as a mismatch.
type ExpressionMatcher struct {
	expression string
	program    cel.Program
}

// NewExpressionMatcher compiles expr, which must produce a bool.
func NewExpressionMatcher(env *cel.Env, expr string) (*ExpressionMatcher, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must evaluate to bool, got %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	return &ExpressionMatcher{expression: expr, program: program}, nil
}

// Match evaluates the expression against the request.
func (m *ExpressionMatcher) Match(req *rebound.Request) bool {
	out, _, err := m.program.Eval(expressionVars(req))
	if err != nil {
		return false
	}
	result, ok := out.Value().(bool)
	return ok && result
}

// Type returns the matcher type.
func (m *ExpressionMatcher) Type() string {
	return "expression"
}

func expressionVars(req *rebound.Request) map[string]any {
	headers := make(map[string]string, len(req.Header))
	for name, values := range req.Header {
		if len(values) > 0 {
			headers[strings.ToLower(name)] = values[0]
		}
	}

	return map[string]any{
		"method":    req.Method,
		"host":      req.Hostname(),
		"path":      req.Path,
		"query":     req.RawQuery,
		"client_ip": req.ClientIP(),
		"headers":   headers,
	}
}
