// Package envconfig reads NAPCAS_* environment variables.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LogLevel returns the log level for the application.
// Values are 0 or false INFO (Default), 1 or true DEBUG, 2 TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("NAPCAS_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// CheckpointDir returns the directory checkpoints are written to.
// Configurable via NAPCAS_CHECKPOINT_DIR
// Default: $HOME/.napcas/checkpoints
func CheckpointDir() string {
	if s := Var("NAPCAS_CHECKPOINT_DIR"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "napcas", "checkpoints")
	}

	return filepath.Join(home, ".napcas", "checkpoints")
}

var (
	// NumThreads sets the kernel worker pool size. 0 means one per CPU.
	NumThreads = Uint("NAPCAS_NUM_THREADS", 0)
	// Seed seeds weight initialization and synthetic data. 0 means time-based.
	Seed = Uint64("NAPCAS_SEED", 0)
	// NoParallel disables the kernel worker pool.
	NoParallel = Bool("NAPCAS_NO_PARALLEL")
)

// BoolWithDefault returns a reader for a boolean variable with a default.
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool returns a reader for a boolean variable defaulting to false.
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// Uint returns a reader for an unsigned integer variable with a default.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// Uint64 returns a reader for a uint64 variable with a default.
func Uint64(key string, defaultValue uint64) func() uint64 {
	return func() uint64 {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return n
			}
		}
		return defaultValue
	}
}

// EnvVar describes one environment variable.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every variable with its current value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"NAPCAS_DEBUG":          {"NAPCAS_DEBUG", LogLevel(), "Show additional debug information (e.g. NAPCAS_DEBUG=1)"},
		"NAPCAS_NUM_THREADS":    {"NAPCAS_NUM_THREADS", NumThreads(), "Kernel worker pool size (default: one per CPU)"},
		"NAPCAS_NO_PARALLEL":    {"NAPCAS_NO_PARALLEL", NoParallel(), "Run every kernel sequentially"},
		"NAPCAS_SEED":           {"NAPCAS_SEED", Seed(), "Seed for weight initialization (default: time based)"},
		"NAPCAS_CHECKPOINT_DIR": {"NAPCAS_CHECKPOINT_DIR", CheckpointDir(), "Directory for checkpoints"},
	}
}

// Values returns every variable formatted as a string.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Var returns an environment variable stripped of leading and trailing quotes or spaces
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
