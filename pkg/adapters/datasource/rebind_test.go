package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebindDollar(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no placeholders", "SELECT 1", "SELECT 1"},
		{"single", "SELECT id FROM games WHERE game_name = ?", "SELECT id FROM games WHERE game_name = $1"},
		{"in list", "DELETE FROM reviews WHERE id IN (?, ?, ?)", "DELETE FROM reviews WHERE id IN ($1, $2, $3)"},
		{"quoted question mark", "SELECT '?' AS q, id FROM t WHERE a = ?", "SELECT '?' AS q, id FROM t WHERE a = $1"},
		{"quoted identifier", `SELECT "a?b" FROM t WHERE x = ? AND y = ?`, `SELECT "a?b" FROM t WHERE x = $1 AND y = $2`},
		{"escaped quote", "SELECT 'it''s ?' WHERE a = ?", "SELECT 'it''s ?' WHERE a = $1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RebindDollar(tt.input))
		})
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?, ?, ?", Placeholders(3))
}

func TestConvertCell(t *testing.T) {
	tests := []struct {
		name   string
		dbType string
		in     any
		want   any
	}{
		{"int from text protocol", "INT", []byte("42"), int64(42)},
		{"bigint", "BIGINT", []byte("-7"), int64(-7)},
		{"unsigned", "UNSIGNED INT", []byte("7"), int64(7)},
		{"double", "DOUBLE", []byte("1.5"), 1.5},
		{"decimal stays text", "DECIMAL", []byte("19.99"), "19.99"},
		{"varchar", "VARCHAR", []byte("Chess"), "Chess"},
		{"unparseable int stays text", "INT", []byte("n/a"), "n/a"},
		{"typed value untouched", "INT", int64(3), int64(3)},
		{"nil untouched", "VARCHAR", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convertCell(tt.dbType, tt.in))
		})
	}
}
