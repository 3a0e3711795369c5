package pkg

import (
	"strings"

	"github.com/bytedance/sonic"
)

// Core domain types shared by the retrieval engine, the dialogue router and
// the HTTP layer.

// Product type filters applied during retrieval.
const (
	ProductTypeSingle = "single"
	ProductTypeCombo  = "combo"
	ProductTypeAny    = "any"
)

// Intent labels returned by the query-understanding service.
const (
	IntentRecommendation = "recommendation"
	IntentComparison     = "comparison"
	IntentInfo           = "info"
	IntentBuy            = "buy"
	IntentSmallTalk      = "small_talk"
	IntentWebsiteInfo    = "website_info"
	IntentComboUpsell    = "combo_upsell"
)

// CategoryValue holds a product's category, which catalog sources provide
// either as a single string or as a list of strings.
type CategoryValue []string

// UnmarshalJSON accepts "combos", ["combos","health-mix"] or null.
func (c *CategoryValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		*c = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := sonic.Unmarshal(data, &list); err != nil {
			return err
		}
		*c = CategoryValue(list)
		return nil
	}
	var single string
	if err := sonic.Unmarshal(data, &single); err != nil {
		return err
	}
	if single == "" {
		*c = nil
		return nil
	}
	*c = CategoryValue{single}
	return nil
}

// MarshalJSON keeps the single-string shape when only one category is set so
// persisted records round-trip the catalog's original form.
func (c CategoryValue) MarshalJSON() ([]byte, error) {
	switch len(c) {
	case 0:
		return []byte("null"), nil
	case 1:
		return sonic.Marshal(c[0])
	default:
		return sonic.Marshal([]string(c))
	}
}

// Contains reports whether the resolved category matches this value.
func (c CategoryValue) Contains(category string) bool {
	for _, v := range c {
		if v == category {
			return true
		}
	}
	return false
}

// Joined returns the categories as one space-separated string for keyword
// matching.
func (c CategoryValue) Joined() string {
	return strings.Join(c, " ")
}

// Pricing carries the catalog's stated price. Price is nil when the source
// record had no parseable price.
type Pricing struct {
	Price    *float64 `json:"price,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

// ProductCandidate is a read-only catalog record supplied by the catalog
// store. SimilarityScore is populated by the retrieval engine.
type ProductCandidate struct {
	ProductID       string        `json:"product_id"`
	Title           string        `json:"title"`
	Category        CategoryValue `json:"category,omitempty"`
	ProductType     string        `json:"product_type,omitempty"`
	Pricing         Pricing       `json:"pricing"`
	Availability    string        `json:"availability,omitempty"`
	Description     string        `json:"description,omitempty"`
	SourceURL       string        `json:"source_url,omitempty"`
	ImageURL        string        `json:"image_url,omitempty"`
	SimilarityScore float64       `json:"similarity_score,omitempty"`
}

// EffectiveType returns the candidate's product type, defaulting to single
// when the catalog record carries none.
func (p ProductCandidate) EffectiveType() string {
	if p.ProductType == "" {
		return ProductTypeSingle
	}
	return p.ProductType
}

// ChatMessage is one entry in the per-session conversation history.
type ChatMessage struct {
	Role      string `json:"role"` // user, assistant
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Constraints are the soft search constraints extracted by the classifier.
// Budget is kept as raw text; the router normalizes it to an integer.
type Constraints struct {
	Budget      string   `json:"budget,omitempty"`
	Category    string   `json:"category,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
}

// IntentData is the structured result of query understanding for one turn.
type IntentData struct {
	Intent            string      `json:"intent"`
	RewrittenQuery    string      `json:"rewritten_query,omitempty"`
	ProductTypeFilter string      `json:"product_type_filter,omitempty"`
	Constraints       Constraints `json:"constraints"`
	ExplicitCategory  string      `json:"explicit_category,omitempty"`
}

// Memory is the durable per-session conversational state.
type Memory struct {
	Budget       *int               `json:"budget,omitempty"`
	Category     string             `json:"category,omitempty"`
	ProductType  string             `json:"product_type,omitempty"`
	Preferences  []string           `json:"preferences"`
	Intent       string             `json:"intent,omitempty"`
	LastProducts []ProductCandidate `json:"last_products"`
	LastQuery    string             `json:"last_query,omitempty"`
	History      []ChatMessage      `json:"history"`
	LastUpdated  int64              `json:"last_updated"`
}

// NewMemory returns the default (empty) memory record stamped with now.
func NewMemory(now int64) *Memory {
	return &Memory{
		Preferences:  []string{},
		LastProducts: []ProductCandidate{},
		History:      []ChatMessage{},
		LastUpdated:  now,
	}
}

// RecentHistory returns the most recent n history entries.
func (m *Memory) RecentHistory(n int) []ChatMessage {
	if len(m.History) <= n {
		return m.History
	}
	return m.History[len(m.History)-n:]
}

// MemoryUpdate is a field-level partial update. Nil fields are no-ops,
// LastProducts replaces wholesale, Preferences are unioned.
type MemoryUpdate struct {
	Budget       *int
	Category     *string
	ProductType  *string
	Preferences  []string
	Intent       *string
	LastProducts []ProductCandidate
	LastQuery    *string
	History      []ChatMessage
}
