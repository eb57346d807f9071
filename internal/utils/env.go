package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// SafeEnv returns the environment variable value for key, or fallback if empty.
func SafeEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// EnvInt parses key as an integer; unset or malformed values yield fallback.
func EnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(SafeEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// EnvBool accepts the strconv.ParseBool spellings.
func EnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(SafeEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

// EnvDuration accepts time.ParseDuration strings such as "15m" or "168h".
func EnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(SafeEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

// EnvList splits a comma separated value, dropping blanks.
func EnvList(key string, fallback []string) []string {
	raw := SafeEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
