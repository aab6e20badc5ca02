// Package secrets resolves `${VAR}` environment variable references embedded
// in configuration values, so operators can keep provider credentials out of
// the committed/on-disk configuration document.
package secrets

import (
	"os"
	"regexp"
)

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv rewrites *s in place, replacing every `${VAR}` reference with
// the value of the named environment variable. A reference to an unset
// variable is replaced with the empty string, matching os.Expand's
// convention. Values with no `${...}` references are left untouched.
func ExpandEnv(s *string) {
	if s == nil || *s == "" {
		return
	}
	if !envRefPattern.MatchString(*s) {
		return
	}
	*s = envRefPattern.ReplaceAllStringFunc(*s, func(match string) string {
		name := envRefPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
