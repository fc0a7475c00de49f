// Package testing holds helpers that gate tests needing services outside the
// test process, such as a NATS server or a local syslog daemon.
package testing

import (
	"os"
	"testing"
)

const (
	envUnitOnly    = "SINKLOG_UNIT_TESTS_ONLY"
	envIntegration = "SINKLOG_RUN_INTEGRATION_TESTS"
	envNATSURL     = "SINKLOG_NATS_URL"
)

// DefaultNATSURL is used by integration tests when SINKLOG_NATS_URL is unset.
const DefaultNATSURL = "nats://127.0.0.1:4222"

// Unit returns true if running in unit test mode. Unit mode is the default;
// integration tests run only when SINKLOG_RUN_INTEGRATION_TESTS=true and
// SINKLOG_UNIT_TESTS_ONLY is not set to true.
func Unit() bool {
	if os.Getenv(envUnitOnly) == "true" {
		return true
	}
	if os.Getenv(envIntegration) == "true" {
		return false
	}
	return true
}

// Integration returns true if running in integration test mode.
func Integration() bool {
	return !Unit()
}

// SkipIfUnit skips the test if running in unit test mode.
func SkipIfUnit(t testing.TB, message ...string) {
	t.Helper()
	if Unit() {
		msg := "Skipping integration test in unit mode"
		if len(message) > 0 {
			msg = message[0]
		}
		t.Skip(msg)
	}
}

// SkipIfIntegration skips the test if running in integration test mode.
func SkipIfIntegration(t testing.TB, message ...string) {
	t.Helper()
	if Integration() {
		msg := "Skipping unit-only test in integration mode"
		if len(message) > 0 {
			msg = message[0]
		}
		t.Skip(msg)
	}
}

// NATSURL returns the NATS server integration tests should talk to.
func NATSURL() string {
	if url := os.Getenv(envNATSURL); url != "" {
		return url
	}
	return DefaultNATSURL
}
