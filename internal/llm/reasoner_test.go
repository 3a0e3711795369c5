package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopassist/pkg"
)

// fakeChatModel returns a scripted reply and records the prompt it was given.
type fakeChatModel struct {
	reply    string
	err      error
	received []*schema.Message
	calls    int
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.calls++
	f.received = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func TestGenerateAnswerEmptyCandidates(t *testing.T) {
	chatModel := &fakeChatModel{reply: "should not be called"}
	reasoner := NewReasoner(chatModel)

	reply, selected, err := reasoner.GenerateAnswer(context.Background(), "anything", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NoProductsReply, reply)
	assert.Nil(t, selected)
	assert.Zero(t, chatModel.calls, "no model call for an empty candidate set")
}

func TestGenerateAnswerResolvesSelection(t *testing.T) {
	chatModel := &fakeChatModel{reply: "The Millet Mix fits your budget.\nPRODUCT_IDS: p1"}
	reasoner := NewReasoner(chatModel)

	candidates := []pkg.ProductCandidate{
		{ProductID: "p1", Title: "Millet Mix"},
		{ProductID: "p2", Title: "Idli Batter"},
	}
	intent := &pkg.IntentData{Intent: pkg.IntentRecommendation, RewrittenQuery: "millet mix"}

	reply, selected, err := reasoner.GenerateAnswer(context.Background(), "millet under 500", intent, candidates, nil)
	require.NoError(t, err)

	assert.Equal(t, "The Millet Mix fits your budget.", reply)
	require.Len(t, selected, 1)
	assert.Equal(t, "p1", selected[0].ProductID)
}

func TestGenerateAnswerPromptCarriesProducts(t *testing.T) {
	chatModel := &fakeChatModel{reply: "ok\nPRODUCT_IDS: p1"}
	reasoner := NewReasoner(chatModel)

	candidates := []pkg.ProductCandidate{{ProductID: "p1", Title: "Millet Mix"}}
	history := []pkg.ChatMessage{{Role: "user", Content: "earlier message"}}

	_, _, err := reasoner.GenerateAnswer(context.Background(), "hello", nil, candidates, history)
	require.NoError(t, err)

	require.Len(t, chatModel.received, 3)
	assert.Equal(t, schema.System, chatModel.received[0].Role)
	assert.Contains(t, chatModel.received[1].Content, "earlier message")
	assert.Contains(t, chatModel.received[2].Content, "[id=p1] Millet Mix")
}

func TestGenerateAnswerPropagatesModelError(t *testing.T) {
	chatModel := &fakeChatModel{err: errors.New("model down")}
	reasoner := NewReasoner(chatModel)

	_, _, err := reasoner.GenerateAnswer(context.Background(), "hello", nil,
		[]pkg.ProductCandidate{{ProductID: "p1"}}, nil)
	assert.ErrorContains(t, err, "model down")
}
