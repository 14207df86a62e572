package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@db:5432/partscout?sslmode=disable", "pgx5://u:p@db:5432/partscout?sslmode=disable"},
		{"postgresql://u:p@db/partscout", "pgx5://u:p@db/partscout"},
		{"pgx5://u:p@db/partscout", "pgx5://u:p@db/partscout"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, migrateURL(tt.in))
	}
}

func TestListFilter_EffectiveLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, ListFilter{}.EffectiveLimit())
	assert.Equal(t, DefaultListLimit, ListFilter{Limit: -3}.EffectiveLimit())
	assert.Equal(t, 7, ListFilter{Limit: 7}.EffectiveLimit())
	assert.Equal(t, MaxListLimit, ListFilter{Limit: MaxListLimit + 1}.EffectiveLimit())
}
