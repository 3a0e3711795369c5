package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shopassist/internal/config"
)

func TestExtractKeywords(t *testing.T) {
	keywords := ExtractKeywords("I want to find a millet health mix for my kid")
	assert.Equal(t, []string{"millet", "health", "mix", "kid"}, keywords)
}

func TestExtractKeywordsDropsShortTokens(t *testing.T) {
	assert.Empty(t, ExtractKeywords("I am ok"))
}

func TestDetectCategory(t *testing.T) {
	rules := config.DefaultCategoryRules()

	assert.Equal(t, "ready-to-cook", DetectCategory("soft idli for breakfast", rules))
	assert.Equal(t, "health-mix", DetectCategory("a MILLET porridge", rules))
	assert.Equal(t, "combos", DetectCategory("gift pack for diwali", rules))
	assert.Empty(t, DetectCategory("something unrelated", rules))
}

func TestDetectCategoryIsDeterministic(t *testing.T) {
	rules := config.CategoryRules{
		"b-category": {"token"},
		"a-category": {"token"},
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, "a-category", DetectCategory("token", rules))
	}
}
