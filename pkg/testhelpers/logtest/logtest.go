// Package logtest checks what observed zap logs expose.
package logtest

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest/observer"
)

// AssertNotLogged fails the test when any message or field of logs contains
// one of values. Empty values are skipped.
func AssertNotLogged(t testing.TB, logs *observer.ObservedLogs, values ...string) {
	t.Helper()
	for _, entry := range logs.All() {
		for _, v := range values {
			if v == "" {
				continue
			}
			if strings.Contains(entry.Message, v) {
				t.Errorf("log %q exposes %q in its message", entry.Message, v)
			}
			for key, field := range entry.ContextMap() {
				if strings.Contains(fmt.Sprint(field), v) {
					t.Errorf("log %q field %s=%v exposes %q", entry.Message, key, field, v)
				}
			}
		}
	}
}
