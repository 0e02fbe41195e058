package sandbox

import (
	"os"
	"strings"
)

// inheritedVars are the only parent variables a sandboxed child sees.
var inheritedVars = []string{
	"PATH", "HOME", "TMPDIR", "SYSTEMROOT",
	"GOPATH", "GOMODCACHE", "GOCACHE", "GOPROXY", "GOFLAGS", "GOSUMDB", "GONOSUMDB", "GOPRIVATE",
	"GOTOOLCHAIN", "HTTPS_PROXY", "HTTP_PROXY", "NO_PROXY",
}

// ReducedEnv returns a minimal environment built from an allow-list of the current
// process's variables plus extra KEY=VALUE pairs. Credentials such as API keys never
// reach generated code.
func ReducedEnv(extra ...string) []string {
	env := make([]string, 0, len(inheritedVars)+len(extra))
	for _, k := range inheritedVars {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	for _, kv := range extra {
		if strings.Contains(kv, "=") {
			env = append(env, kv)
		}
	}
	return env
}
