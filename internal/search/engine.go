// Package search implements hybrid retrieval over the catalog's vector
// index: vector similarity fused with keyword overlap, gated by product-type,
// category and budget filters, with a relevance-triggered fallback widening.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"shopassist/internal/catalog"
	"shopassist/internal/config"
	"shopassist/internal/logger"
	"shopassist/pkg"
)

const (
	// poolMultiplier over-fetches neighbors so post-hoc filtering can still
	// fill k slots.
	poolMultiplier = 20

	similarityWeight = 0.8
	keywordWeight    = 0.2

	// budgetSlack is the soft-zone ceiling: prices up to budget*budgetSlack
	// are kept with a penalty, anything above is dropped.
	budgetSlack       = 1.10
	budgetSoftPenalty = 0.1
	wideningThreshold = 2
)

// Embedder turns texts into vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ResourceProvider supplies the current (index, metadata) pair.
type ResourceProvider interface {
	Get() (*catalog.Resources, error)
}

// Engine performs hybrid retrieval over the product catalog.
type Engine struct {
	provider ResourceProvider
	embedder Embedder
	rules    config.CategoryRules
}

// NewEngine creates a retrieval engine.
func NewEngine(provider ResourceProvider, embedder Embedder, rules config.CategoryRules) *Engine {
	return &Engine{
		provider: provider,
		embedder: embedder,
		rules:    rules,
	}
}

// Search returns up to k candidates for the query, each annotated with its
// fused similarity score. A blank query or missing vector store yields an
// empty result, not an error.
func (e *Engine) Search(ctx context.Context, query string, k int, memory *pkg.Memory, productTypeFilter string) ([]pkg.ProductCandidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	resources, err := e.provider.Get()
	if err != nil {
		if errors.Is(err, catalog.ErrUnavailable) {
			logger.Warn().Msg("vector store unavailable, returning empty result")
			return nil, nil
		}
		return nil, err
	}

	keywords := ExtractKeywords(query)
	resolvedCategory := e.resolveCategory(query, memory)

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	queryVector := vectors[0]
	catalog.NormalizeL2(queryVector)

	hits, err := resources.Index.Search(queryVector, k*poolMultiplier)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	var budget *int
	if memory != nil {
		budget = memory.Budget
	}

	results := make([]pkg.ProductCandidate, 0, k)
	for _, hit := range hits {
		if len(results) >= k {
			break
		}
		if hit.Ref < 0 || hit.Ref >= len(resources.Metadata) {
			continue
		}
		product := resources.Metadata[hit.Ref]

		if productTypeFilter != "" && productTypeFilter != pkg.ProductTypeAny {
			if product.EffectiveType() != productTypeFilter {
				continue
			}
		}

		// A candidate with no category value passes through unfiltered.
		if resolvedCategory != "" && len(product.Category) > 0 {
			if !product.Category.Contains(resolvedCategory) {
				continue
			}
		}

		pricePenalty := 0.0
		if budget != nil {
			price := product.Pricing.Price
			if price == nil {
				continue
			}
			limit := float64(*budget) * budgetSlack
			if *price > limit {
				continue
			}
			if *price > float64(*budget) {
				pricePenalty = budgetSoftPenalty
			}
		}

		keywordScore := keywordOverlap(product, keywords)
		product.SimilarityScore = similarityWeight*hit.Score + keywordWeight*keywordScore - pricePenalty
		results = append(results, product)
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].SimilarityScore > results[b].SimilarityScore
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// WidenIfSparse re-runs a single-filtered search with the type filter relaxed
// to any when its keyword-match count is below the widening threshold. The
// widened set is adopted only when it strictly improves the match count.
func (e *Engine) WidenIfSparse(ctx context.Context, query string, k int, memory *pkg.Memory, productTypeFilter string, results []pkg.ProductCandidate) ([]pkg.ProductCandidate, string, error) {
	if productTypeFilter != pkg.ProductTypeSingle {
		return results, productTypeFilter, nil
	}

	matches := KeywordMatchCount(results, query)
	if matches >= wideningThreshold {
		return results, productTypeFilter, nil
	}

	widened, err := e.Search(ctx, query, k, memory, pkg.ProductTypeAny)
	if err != nil {
		return nil, "", err
	}

	if KeywordMatchCount(widened, query) > matches {
		logger.Debug().Str("query", query).Msg("fallback widening adopted")
		return widened, pkg.ProductTypeAny, nil
	}
	return results, productTypeFilter, nil
}

// KeywordMatchCount counts candidates whose title+category contains at least
// one query keyword.
func KeywordMatchCount(products []pkg.ProductCandidate, query string) int {
	keywords := ExtractKeywords(query)
	count := 0
	for _, p := range products {
		text := strings.ToLower(p.Title + " " + p.Category.Joined())
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				count++
				break
			}
		}
	}
	return count
}

// resolveCategory prefers the session's explicit category over keyword
// detection on the query text.
func (e *Engine) resolveCategory(query string, memory *pkg.Memory) string {
	if memory != nil && memory.Category != "" {
		return memory.Category
	}
	return DetectCategory(query, e.rules)
}

// keywordOverlap is the share of query keywords found as substrings of the
// candidate's title and category.
func keywordOverlap(product pkg.ProductCandidate, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	text := strings.ToLower(product.Title + " " + product.Category.Joined())
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}
