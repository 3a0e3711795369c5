package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"shopassist/pkg"
)

// NoProductsReply is returned without a model call when there is nothing to
// reason over.
const NoProductsReply = "I couldn't find any products that match your requirement. " +
	"Would you like to adjust your preferences?"

const reasonerSystemPrompt = `You are an AI shopping assistant.
Rules:
- You can ONLY use the products provided to you.
- Do NOT invent or assume other products.
- Compare products honestly based on the data.
- Be concise, helpful, and user-focused.
- If no product fits well, say so.
- End your reply with one line of the form "PRODUCT_IDS: <id1>, <id2>" listing the ids of the products you actually discussed.`

const reasonerUserPromptTemplate = `User message:
"%s"

Intent data:
%s

Available products:
%s

Task:
- Recommend the best option(s)
- Explain WHY they fit the user
- Ask one helpful follow-up question OR suggest next action`

// Reasoner generates the user-facing recommendation text over retrieved
// candidates and resolves which candidates it actually discussed.
type Reasoner struct {
	model model.BaseChatModel
}

// NewReasoner creates a recommendation reasoner.
func NewReasoner(chatModel model.BaseChatModel) *Reasoner {
	return &Reasoner{model: chatModel}
}

// GenerateAnswer produces reply text plus the subset of candidates the model
// discussed, resolved via the trailing id tag.
func (r *Reasoner) GenerateAnswer(ctx context.Context, message string, intent *pkg.IntentData, candidates []pkg.ProductCandidate, history []pkg.ChatMessage) (string, []pkg.ProductCandidate, error) {
	if len(candidates) == 0 {
		return NoProductsReply, nil, nil
	}

	messages := []*schema.Message{
		schema.SystemMessage(reasonerSystemPrompt),
	}
	if len(history) > 0 {
		messages = append(messages, schema.UserMessage(historyContext(history)))
	}
	messages = append(messages, schema.UserMessage(fmt.Sprintf(
		reasonerUserPromptTemplate,
		message,
		formatIntentData(intent),
		formatProducts(candidates),
	)))

	out, err := r.model.Generate(ctx, messages)
	if err != nil {
		return "", nil, fmt.Errorf("error generating recommendation: %w", err)
	}

	display, selected := ExtractSelection(strings.TrimSpace(out.Content), candidates)
	return display, selected, nil
}

func formatIntentData(intent *pkg.IntentData) string {
	if intent == nil {
		return "{}"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "intent: %s\n", intent.Intent)
	if intent.RewrittenQuery != "" {
		fmt.Fprintf(&b, "query: %s\n", intent.RewrittenQuery)
	}
	if intent.Constraints.Budget != "" {
		fmt.Fprintf(&b, "budget: %s\n", intent.Constraints.Budget)
	}
	if len(intent.Constraints.Preferences) > 0 {
		fmt.Fprintf(&b, "preferences: %s\n", strings.Join(intent.Constraints.Preferences, ", "))
	}
	return strings.TrimSpace(b.String())
}

func formatProducts(products []pkg.ProductCandidate) string {
	lines := make([]string, 0, len(products))
	for i, p := range products {
		line := fmt.Sprintf("%d. [id=%s] %s", i+1, p.ProductID, p.Title)
		if p.Pricing.Price != nil {
			line += fmt.Sprintf(" - %.0f %s", *p.Pricing.Price, p.Pricing.Currency)
		}
		if len(p.Category) > 0 {
			line += fmt.Sprintf(" (%s)", p.Category.Joined())
		}
		if p.SourceURL != "" {
			line += " - " + p.SourceURL
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
