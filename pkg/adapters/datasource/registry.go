package datasource

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ekaya-inc/gamedash/pkg/apperrors"
)

// DialectInfo describes a registered dialect for discovery.
type DialectInfo struct {
	Type        string `json:"type"`         // "mysql", "postgres", "sqlite"
	DisplayName string `json:"display_name"` // "MySQL", "PostgreSQL"
	Description string `json:"description"`
}

// DialectRegistration pairs the public info with the dialect implementation.
type DialectRegistration struct {
	Info    DialectInfo
	Dialect Dialect
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DialectRegistration)
)

// Register is called by each dialect's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg DialectRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredDialects returns info for all registered dialects, sorted by type.
func RegisteredDialects() []DialectInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DialectInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetDialect returns the dialect registered under name. The error for an
// unknown name lists the registered types.
func GetDialect(name string) (Dialect, error) {
	registryMu.RLock()
	reg, ok := registry[name]
	registryMu.RUnlock()
	if ok {
		return reg.Dialect, nil
	}

	known := make([]string, 0)
	for _, info := range RegisteredDialects() {
		known = append(known, info.Type)
	}
	return nil, fmt.Errorf("dialect %q (supported: %s): %w", name, strings.Join(known, ", "), apperrors.ErrNotFound)
}
