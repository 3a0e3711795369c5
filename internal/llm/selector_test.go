package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shopassist/pkg"
)

var selectorCandidates = []pkg.ProductCandidate{
	{ProductID: "p1", Title: "Millet Mix"},
	{ProductID: "p2", Title: "Idli Batter"},
	{ProductID: "p3", Title: "Breakfast Combo"},
}

func TestExtractSelectionSubset(t *testing.T) {
	text := "I'd suggest the Millet Mix and the Breakfast Combo.\nPRODUCT_IDS: p1, p3"

	display, selected := ExtractSelection(text, selectorCandidates)

	assert.Equal(t, "I'd suggest the Millet Mix and the Breakfast Combo.", display)
	assert.Equal(t, []string{"p1", "p3"}, ids(selected))
}

func TestExtractSelectionPreservesCandidateOrder(t *testing.T) {
	text := "Both are great.\nPRODUCT_IDS: p3, p1"

	_, selected := ExtractSelection(text, selectorCandidates)
	assert.Equal(t, []string{"p1", "p3"}, ids(selected))
}

func TestExtractSelectionMissingTagSelectsAll(t *testing.T) {
	display, selected := ExtractSelection("Here are some thoughts.", selectorCandidates)

	assert.Equal(t, "Here are some thoughts.", display)
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(selected))
}

func TestExtractSelectionUnknownIDsSelectAll(t *testing.T) {
	_, selected := ExtractSelection("Reply.\nPRODUCT_IDS: x9, y4", selectorCandidates)
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(selected))
}

func TestExtractSelectionLastTagWins(t *testing.T) {
	text := "Earlier I wrote:\nPRODUCT_IDS: p2\nBut on reflection:\nPRODUCT_IDS: p1"

	display, selected := ExtractSelection(text, selectorCandidates)
	assert.Equal(t, []string{"p1"}, ids(selected))
	assert.NotContains(t, display, "PRODUCT_IDS")
}

func TestExtractSelectionNoCandidates(t *testing.T) {
	display, selected := ExtractSelection("Nothing to pick from.\nPRODUCT_IDS: p1", nil)

	assert.Equal(t, "Nothing to pick from.", display)
	assert.Nil(t, selected)
}

func TestExtractSelectionEmptyTag(t *testing.T) {
	_, selected := ExtractSelection("Reply.\nPRODUCT_IDS:", selectorCandidates)
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(selected))
}

func ids(products []pkg.ProductCandidate) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ProductID
	}
	return out
}
