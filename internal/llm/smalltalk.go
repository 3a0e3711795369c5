package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"shopassist/pkg"
)

const smallTalkSystemPrompt = `You are a friendly AI assistant for an online food store.
Respond naturally and briefly.
Do not mention products unless the user asks.`

const summarySystemPrompt = `You are a friendly AI assistant for an online food store.
Use ONLY the catalog overview provided to describe what the store offers.
Be brief and invite the user to ask for recommendations.`

// SmallTalker answers conversational turns that need no retrieval.
type SmallTalker struct {
	model model.BaseChatModel
}

// NewSmallTalker creates a small-talk generator.
func NewSmallTalker(chatModel model.BaseChatModel) *SmallTalker {
	return &SmallTalker{model: chatModel}
}

// Generate produces a brief conversational reply.
func (s *SmallTalker) Generate(ctx context.Context, message string) (string, error) {
	out, err := s.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(smallTalkSystemPrompt),
		schema.UserMessage(message),
	})
	if err != nil {
		return "", fmt.Errorf("error generating small talk: %w", err)
	}
	return strings.TrimSpace(out.Content), nil
}

// Summarizer answers questions about the store from the full, unfiltered
// metadata set.
type Summarizer struct {
	model model.BaseChatModel
}

// NewSummarizer creates a catalog summarizer.
func NewSummarizer(chatModel model.BaseChatModel) *Summarizer {
	return &Summarizer{model: chatModel}
}

// Generate produces a store overview reply grounded on the catalog metadata.
func (s *Summarizer) Generate(ctx context.Context, message string, products []pkg.ProductCandidate) (string, error) {
	out, err := s.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(summarySystemPrompt),
		schema.UserMessage(fmt.Sprintf("Catalog overview:\n%s\n\nUser message:\n%q", catalogOverview(products), message)),
	})
	if err != nil {
		return "", fmt.Errorf("error generating catalog summary: %w", err)
	}
	return strings.TrimSpace(out.Content), nil
}

// catalogOverview aggregates the catalog into per-category product counts so
// the prompt stays small on large catalogs.
func catalogOverview(products []pkg.ProductCandidate) string {
	counts := make(map[string]int)
	for _, p := range products {
		if len(p.Category) == 0 {
			counts["uncategorized"]++
			continue
		}
		for _, c := range p.Category {
			counts[c]++
		}
	}

	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var b strings.Builder
	fmt.Fprintf(&b, "%d products in total\n", len(products))
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s: %d products\n", c, counts[c])
	}
	return strings.TrimSpace(b.String())
}
