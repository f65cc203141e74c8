package circuit

import (
	"regexp"
	"strings"

	"github.com/vyrodovalexey/rebound/internal/config"
)

// PathRewrite is a compiled path transform. Exactly one mode applies:
// a full replacement, a regex substitution, or a prefix swap.
type PathRewrite struct {
	replace      string
	regex        *regexp.Regexp
	substitution string
	stripPrefix  string
	addPrefix    string
}

// compileRewrite compiles a configured rewrite. A nil or empty
// configuration yields nil.
func compileRewrite(cfg *config.PathRewrite) (*PathRewrite, error) {
	if cfg == nil {
		return nil, nil
	}

	switch {
	case cfg.Path != "":
		return &PathRewrite{replace: cfg.Path}, nil
	case cfg.Regex != nil && cfg.Regex.Pattern != "":
		re, err := regexp.Compile(cfg.Regex.Pattern)
		if err != nil {
			return nil, err
		}
		return &PathRewrite{regex: re, substitution: cfg.Regex.Substitution}, nil
	case cfg.StripPrefix != "" || cfg.AddPrefix != "":
		return &PathRewrite{stripPrefix: cfg.StripPrefix, addPrefix: cfg.AddPrefix}, nil
	}
	return nil, nil
}

// Apply returns the rewritten path. The result always starts with "/".
func (p *PathRewrite) Apply(path string) string {
	switch {
	case p.replace != "":
		path = p.replace
	case p.regex != nil:
		path = p.regex.ReplaceAllString(path, p.substitution)
	default:
		if p.stripPrefix != "" && hasPathPrefix(path, p.stripPrefix) {
			path = strings.TrimPrefix(path, p.stripPrefix)
		}
		if p.addPrefix != "" {
			prefix := strings.TrimSuffix(p.addPrefix, "/")
			if path == "" {
				path = prefix
			} else {
				path = prefix + ensureLeadingSlash(path)
			}
		}
	}
	return ensureLeadingSlash(path)
}

func ensureLeadingSlash(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
