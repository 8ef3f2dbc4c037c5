package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain array", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"bare fence", "```\n{\"rows\":[]}\n```", `{"rows":[]}`},
		{"leading prose", "Here you go:\n{\"rows\":[]}\nThanks", `{"rows":[]}`},
		{"no json", "sorry", "sorry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.in))
		})
	}
}

func TestParseModelOutput(t *testing.T) {
	res, err := ParseModelOutput("```json\n{\"rows\":[{\"txid\":\"a\",\"amount_or_qty\":12.30}],\"quality\":\"good\",\"confidence\":0.92}\n```")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "good", res.Quality)
	assert.InDelta(t, 0.92, res.Confidence, 1e-9)
	assert.Equal(t, "12.30", RowFromObject(res.Rows[0]).AmountOrQty.String())

	res, err = ParseModelOutput(`[{"txid":"b"}]`)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)

	_, err = ParseModelOutput("not json")
	assert.Error(t, err)
}
