package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveHost(t *testing.T) {
	tests := []struct {
		host     string
		inDocker bool
		want     string
	}{
		{"localhost", false, "localhost"},
		{"127.0.0.1", false, "127.0.0.1"},
		{"localhost", true, dockerHostAlias},
		{"127.0.0.1", true, dockerHostAlias},
		{"::1", true, dockerHostAlias},
		{"db.internal", true, "db.internal"},
		{"", true, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveHost(tt.host, tt.inDocker), "host %q in docker %v", tt.host, tt.inDocker)
	}
}
