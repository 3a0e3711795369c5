package pkg

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryValueAcceptsStringAndList(t *testing.T) {
	var p ProductCandidate
	require.NoError(t, sonic.Unmarshal([]byte(`{"product_id":"p1","title":"x","category":"combos"}`), &p))
	assert.Equal(t, CategoryValue{"combos"}, p.Category)

	require.NoError(t, sonic.Unmarshal([]byte(`{"product_id":"p2","title":"x","category":["combos","health-mix"]}`), &p))
	assert.Equal(t, CategoryValue{"combos", "health-mix"}, p.Category)

	require.NoError(t, sonic.Unmarshal([]byte(`{"product_id":"p3","title":"x","category":null}`), &p))
	assert.Nil(t, p.Category)
}

func TestCategoryValueContains(t *testing.T) {
	c := CategoryValue{"combos", "health-mix"}
	assert.True(t, c.Contains("health-mix"))
	assert.False(t, c.Contains("infant-food"))
	assert.False(t, CategoryValue(nil).Contains("combos"))
}

func TestEffectiveTypeDefaultsToSingle(t *testing.T) {
	assert.Equal(t, ProductTypeSingle, ProductCandidate{}.EffectiveType())
	assert.Equal(t, ProductTypeCombo, ProductCandidate{ProductType: "combo"}.EffectiveType())
}

func TestRecentHistory(t *testing.T) {
	m := &Memory{History: []ChatMessage{
		{Content: "a"}, {Content: "b"}, {Content: "c"},
	}}
	assert.Len(t, m.RecentHistory(5), 3)

	recent := m.RecentHistory(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Content)
	assert.Equal(t, "c", recent[1].Content)
}
