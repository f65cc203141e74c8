// Package circuit compiles an ordered list of routing rules into a
// Circuit, the immutable decision structure evaluated for every request.
//
// Evaluation walks the nodes in declaration order and the first node
// whose predicate matches wins. Build appends a synthetic Deny(502)
// node whenever the last rule is not a catch-all, so every lookup
// resolves to exactly one action.
//
//	c, err := circuit.Build(cfg.Rules, circuit.WithLogger(logger))
//	if err != nil {
//	    var berr *circuit.BuildError
//	    errors.As(err, &berr) // berr.Ordinal names the offending rule
//	}
//	node := c.Lookup(req)
//
// A built Circuit is read-only and safe for concurrent use.
package circuit
