package reference_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storeflow/internal/core/id"
)

func TestUnknownIDs(t *testing.T) {
	a, b, c := id.New(), id.New(), id.New()

	tests := []struct {
		name   string
		wanted []id.ID
		found  []id.ID
		want   []id.ID
	}{
		{name: "all found", wanted: []id.ID{a, b}, found: []id.ID{b, a}},
		{name: "one missing", wanted: []id.ID{a, b, c}, found: []id.ID{a}, want: []id.ID{b, c}},
		{name: "duplicates reported once", wanted: []id.ID{c, c}, want: []id.ID{c}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unknownIDs(tt.wanted, tt.found))
		})
	}
}
