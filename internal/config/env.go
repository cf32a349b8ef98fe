package config

import (
	"os"
	"strconv"
	"time"
)

// Optional variables fall back to their default when unset or unparsable.

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	b, err := strconv.ParseBool(os.Getenv(k))
	if err != nil {
		return d
	}
	return b
}

func envInt(k string, d int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return d
	}
	return n
}

func envDur(k string, d time.Duration) time.Duration {
	dur, err := time.ParseDuration(os.Getenv(k))
	if err != nil {
		return d
	}
	return dur
}
