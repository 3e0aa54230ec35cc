package ids

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsNotNil(t *testing.T) {
	id, err := New()
	require.NoError(t, err)
	assert.False(t, id.IsNil())
}

func TestChronologicalOrderingSortsLexicographically(t *testing.T) {
	first, err := New()
	require.NoError(t, err)
	second, err := New()
	require.NoError(t, err)

	assert.True(t, first.Less(second), "ids generated in sequence should sort in creation order")
}

func TestRoundTripJSON(t *testing.T) {
	id := MustNew()

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded ID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-an-id")
	assert.Error(t, err)
}
