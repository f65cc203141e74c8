// Package config provides configuration types and loading for the
// rebound gateway.
//
// The configuration is a single YAML document holding the listener,
// worker pool, outbound client and observability settings together with
// the ordered list of routing rules the circuit is compiled from.
//
// # Features
//
//   - YAML configuration file loading
//   - Environment variable substitution with ${VAR:-default} syntax
//   - Defaults for every optional setting
//   - Validation with a path for every reported problem
//   - File watching for hot reload of the rule list
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("rebound.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// # File Watching
//
//	watcher, err := config.NewWatcher(path, func(cfg *config.ReboundConfig) {
//	    // rebuild the circuit
//	}, config.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	watcher.Start(ctx)
package config
