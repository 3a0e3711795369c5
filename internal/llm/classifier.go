package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"shopassist/internal/logger"
	"shopassist/pkg"
)

const classifierSystemPrompt = `You are an AI assistant that converts user shopping queries into structured search data.
Rules:
- Do NOT invent products
- Do NOT answer the user
- Only return valid JSON
- Keep rewritten_query short and optimized for semantic search`

const classifierUserPromptTemplate = `User message:
"%s"

Return JSON with:
- rewritten_query (string or null when the message needs prior context to search)
- intent (one of: recommendation, comparison, info, buy, small_talk, website_info, combo_upsell)
- product_type_filter (one of: single, combo, any, or null)
- constraints:
    - budget (string or null)
    - category (string or null)
    - preferences (array of strings)
- explicit_category (one of: special-offer, health-mix, ready-to-cook, combos, infant-food, or null)
`

// validIntents rejects unknown intent labels at the boundary.
var validIntents = map[string]struct{}{
	pkg.IntentRecommendation: {},
	pkg.IntentComparison:     {},
	pkg.IntentInfo:           {},
	pkg.IntentBuy:            {},
	pkg.IntentSmallTalk:      {},
	pkg.IntentWebsiteInfo:    {},
	pkg.IntentComboUpsell:    {},
}

// Classifier extracts intent and search constraints from a user message via
// the chat model.
type Classifier struct {
	model model.BaseChatModel
}

// NewClassifier creates an intent classifier.
func NewClassifier(chatModel model.BaseChatModel) *Classifier {
	return &Classifier{model: chatModel}
}

// Classify runs query understanding over the message and the recent history.
// Malformed model output fails closed to DefaultIntentData; only the model
// call itself can return an error.
func (c *Classifier) Classify(ctx context.Context, message string, history []pkg.ChatMessage) (*pkg.IntentData, error) {
	messages := []*schema.Message{
		schema.SystemMessage(classifierSystemPrompt),
	}
	if len(history) > 0 {
		messages = append(messages, schema.UserMessage(historyContext(history)))
	}
	messages = append(messages, schema.UserMessage(fmt.Sprintf(classifierUserPromptTemplate, message)))

	out, err := c.model.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("error generating intent classification: %w", err)
	}

	return ParseIntentData(out.Content, message), nil
}

// flexString unmarshals a JSON string, number or null into a plain string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(trimmed)
	return nil
}

type intentPayload struct {
	RewrittenQuery    flexString `json:"rewritten_query"`
	Intent            string     `json:"intent"`
	ProductTypeFilter flexString `json:"product_type_filter"`
	Constraints       struct {
		Budget      flexString `json:"budget"`
		Category    flexString `json:"category"`
		Preferences []string   `json:"preferences"`
	} `json:"constraints"`
	ExplicitCategory flexString `json:"explicit_category"`
}

// ParseIntentData parses the classifier's JSON output, falling back to
// DefaultIntentData on any malformed or unknown shape.
func ParseIntentData(content, message string) *pkg.IntentData {
	raw := stripFences(content)

	var payload intentPayload
	if err := sonic.Unmarshal([]byte(raw), &payload); err != nil {
		logger.Warn().Err(err).Msg("malformed classifier output, using default intent")
		return DefaultIntentData(message)
	}

	if _, ok := validIntents[payload.Intent]; !ok {
		logger.Warn().Str("intent", payload.Intent).Msg("unknown intent label, using default intent")
		return DefaultIntentData(message)
	}

	filter := string(payload.ProductTypeFilter)
	switch filter {
	case pkg.ProductTypeSingle, pkg.ProductTypeCombo, pkg.ProductTypeAny, "":
	default:
		filter = ""
	}

	return &pkg.IntentData{
		Intent:            payload.Intent,
		RewrittenQuery:    string(payload.RewrittenQuery),
		ProductTypeFilter: filter,
		Constraints: pkg.Constraints{
			Budget:      string(payload.Constraints.Budget),
			Category:    string(payload.Constraints.Category),
			Preferences: payload.Constraints.Preferences,
		},
		ExplicitCategory: string(payload.ExplicitCategory),
	}
}

// DefaultIntentData is the documented fail-closed fallback: treat the turn as
// a plain single-product recommendation for the raw message.
func DefaultIntentData(message string) *pkg.IntentData {
	return &pkg.IntentData{
		Intent:            pkg.IntentRecommendation,
		RewrittenQuery:    message,
		ProductTypeFilter: pkg.ProductTypeSingle,
		Constraints:       pkg.Constraints{Preferences: []string{}},
	}
}

// stripFences removes a surrounding markdown code fence, which chat models
// add around JSON despite instructions.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// historyContext renders recent history the way the NLU prompt expects it.
func historyContext(history []pkg.ChatMessage) string {
	var b strings.Builder
	b.WriteString("<conversation_context>\n")
	for i, msg := range history {
		fmt.Fprintf(&b, "%d. [%s]: %s\n", i+1, strings.ToUpper(msg.Role), msg.Content)
	}
	b.WriteString("</conversation_context>")
	return b.String()
}
