package toolbridge

import (
	"os"
	"strings"
)

// childEnv keeps the parent variables a tool server needs to reach its API
// (system basics, GITHUB_*, proxy and CA settings) and then applies extra
// KEY=VALUE entries, replacing any inherited value for the key.
func childEnv(parent []string, extra []string) []string {
	allowedPrefixes := []string{
		"PATH=",
		"HOME=",
		"USER=",
		"LOGNAME=",
		"SHELL=",
		"TMPDIR=",
		"TMP=",
		"TEMP=",
		"LANG=",
		"LC_",
		"TERM=",
		"PWD=",
		"SYSTEMROOT=",
		"GITHUB_",
		"HTTP_PROXY=",
		"HTTPS_PROXY=",
		"NO_PROXY=",
		"http_proxy=",
		"https_proxy=",
		"no_proxy=",
		"SSL_CERT_",
	}

	overridden := make(map[string]struct{}, len(extra))
	for _, kv := range extra {
		overridden[envKey(kv)] = struct{}{}
	}

	env := make([]string, 0, len(allowedPrefixes)+len(extra))
	for _, kv := range parent {
		if _, ok := overridden[envKey(kv)]; ok {
			continue
		}
		for _, prefix := range allowedPrefixes {
			if strings.HasPrefix(kv, prefix) {
				env = append(env, kv)
				break
			}
		}
	}
	return append(env, extra...)
}

func envKey(kv string) string {
	if i := strings.IndexByte(kv, '='); i >= 0 {
		return kv[:i]
	}
	return kv
}

func defaultChildEnv(extra []string) []string {
	return childEnv(os.Environ(), extra)
}
