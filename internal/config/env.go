package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup returns the trimmed value of k, or "" when unset.
func lookup(k string) string {
	return strings.TrimSpace(os.Getenv(k))
}

func envString(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if f, err := strconv.ParseFloat(lookup(k), 64); err == nil {
		return f
	}
	return def
}

func envInt(k string, def int) int {
	if i, err := strconv.Atoi(lookup(k)); err == nil {
		return i
	}
	return def
}

func envBool(k string, def bool) bool {
	switch strings.ToLower(lookup(k)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(lookup(k)); err == nil {
		return d
	}
	return def
}

// envList splits a comma-separated variable, dropping blank entries.
func envList(k string) []string {
	var out []string
	for _, p := range strings.Split(lookup(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns p with a leading slash and no trailing slash;
// empty input is the root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
