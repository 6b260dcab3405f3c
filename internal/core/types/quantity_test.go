package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantity_JSON(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{`100`, Qty(100)},
		{`"60"`, Qty(60)},
		{`1.5`, Quantity(15_000)},
		{`"0.00015"`, Quantity(2)},
		{`-2.25`, Quantity(-22_500)},
		{`null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var q Quantity
			require.NoError(t, json.Unmarshal([]byte(tt.in), &q))
			assert.Equal(t, tt.want, q)
		})
	}

	out, err := json.Marshal(Qty(60))
	require.NoError(t, err)
	assert.Equal(t, "60.0000", string(out))
}

func TestQuantity_Invalid(t *testing.T) {
	var q Quantity
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &q))
	assert.Error(t, json.Unmarshal([]byte(`""`), &q))
}

func TestQuantity_Times(t *testing.T) {
	v := Quantity(25_000).Times(MustMoney("4.10"))
	assert.Equal(t, "10.25", v.String())
	assert.True(t, Qty(0).Times(MustMoney("3")).IsZero())
}
