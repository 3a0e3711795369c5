// Package chat implements the dialogue router: the per-message state machine
// that ties session memory, the response cache, query understanding,
// retrieval and reasoning together.
package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"shopassist/internal/cache"
	"shopassist/internal/catalog"
	"shopassist/internal/logger"
	"shopassist/internal/session"
	"shopassist/pkg"
)

// resultLimit is how many candidates each search returns to the reasoner.
const resultLimit = 3

// classifierHistoryWindow is how many recent history entries the intent
// classifier sees.
const classifierHistoryWindow = 5

// Fixed replies for the early-exit branches. These are returned verbatim and
// never written through the response cache.
const (
	ClarifyReply = "Could you tell me a bit more about what you're looking for? " +
		"For example a dish, an ingredient, or a budget."
	ComboClarifyReply = "Tell me what you're looking for first, and I'll suggest matching combo packs."
	ComboApologyReply = "Sorry, I couldn't find any combo packs related to your last search. " +
		"Would you like to see something else?"
	ShowOptionsFirstReply = "Let me show you some options first! What kind of products are you looking for?"
)

// IntentClassifier is the external query-understanding service.
type IntentClassifier interface {
	Classify(ctx context.Context, message string, history []pkg.ChatMessage) (*pkg.IntentData, error)
}

// AnswerGenerator is the external reasoning service plus selection mapping.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, message string, intent *pkg.IntentData, candidates []pkg.ProductCandidate, history []pkg.ChatMessage) (string, []pkg.ProductCandidate, error)
}

// SmallTalkGenerator answers conversational turns.
type SmallTalkGenerator interface {
	Generate(ctx context.Context, message string) (string, error)
}

// CatalogSummarizer answers store-overview turns from the full metadata set.
type CatalogSummarizer interface {
	Generate(ctx context.Context, message string, products []pkg.ProductCandidate) (string, error)
}

// Searcher is the retrieval engine surface the router needs.
type Searcher interface {
	Search(ctx context.Context, query string, k int, memory *pkg.Memory, productTypeFilter string) ([]pkg.ProductCandidate, error)
	WidenIfSparse(ctx context.Context, query string, k int, memory *pkg.Memory, productTypeFilter string, results []pkg.ProductCandidate) ([]pkg.ProductCandidate, string, error)
}

// MetadataProvider supplies the full catalog metadata for summaries.
type MetadataProvider interface {
	Get() (*catalog.Resources, error)
}

// Router routes each incoming message through exactly one intent branch.
type Router struct {
	sessions   *session.Store
	cache      *cache.ResponseCache
	classifier IntentClassifier
	searcher   Searcher
	reasoner   AnswerGenerator
	smallTalk  SmallTalkGenerator
	summarizer CatalogSummarizer
	metadata   MetadataProvider

	// Per-session locks serialize concurrent turns for one session id so
	// read-modify-write sequences on memory cannot interleave.
	locks sync.Map
}

// NewRouter wires the dialogue router.
func NewRouter(
	sessions *session.Store,
	responseCache *cache.ResponseCache,
	classifier IntentClassifier,
	searcher Searcher,
	reasoner AnswerGenerator,
	smallTalk SmallTalkGenerator,
	summarizer CatalogSummarizer,
	metadata MetadataProvider,
) *Router {
	return &Router{
		sessions:   sessions,
		cache:      responseCache,
		classifier: classifier,
		searcher:   searcher,
		reasoner:   reasoner,
		smallTalk:  smallTalk,
		summarizer: summarizer,
		metadata:   metadata,
	}
}

// HandleMessage runs one conversational turn and returns the reply text and
// the products it concerns.
func (r *Router) HandleMessage(ctx context.Context, sessionID, userInput string) (string, []pkg.ProductCandidate, error) {
	lock := r.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := r.sessions.AppendMessage(ctx, sessionID, "user", userInput); err != nil {
		return "", nil, err
	}

	memory, err := r.sessions.Load(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}

	intent, err := r.classifier.Classify(ctx, userInput, memory.RecentHistory(classifierHistoryWindow))
	if err != nil {
		return "", nil, fmt.Errorf("intent classification failed: %w", err)
	}

	logger.Debug().
		Str("session_id", sessionID).
		Str("intent", intent.Intent).
		Str("rewritten_query", intent.RewrittenQuery).
		Msg("message classified")

	// Persist the rewritten query immediately so a later combo-upsell turn
	// can reuse it even when this turn is served from cache.
	if intent.RewrittenQuery != "" {
		query := intent.RewrittenQuery
		memory, err = r.sessions.Update(ctx, sessionID, pkg.MemoryUpdate{LastQuery: &query})
		if err != nil {
			return "", nil, err
		}
	}

	isFollowUp := (intent.Intent == pkg.IntentComparison || intent.Intent == pkg.IntentInfo) &&
		intent.RewrittenQuery == ""

	if !isFollowUp && intent.Intent != pkg.IntentComboUpsell {
		cached, hit, err := r.cache.Get(ctx, sessionID, userInput)
		if err != nil {
			return "", nil, err
		}
		if hit {
			if err := r.sessions.AppendMessage(ctx, sessionID, "assistant", cached); err != nil {
				return "", nil, err
			}
			return cached, memory.LastProducts, nil
		}
	}

	switch {
	case intent.Intent == pkg.IntentSmallTalk:
		return r.handleSmallTalk(ctx, sessionID, userInput)

	case intent.Intent == pkg.IntentWebsiteInfo:
		return r.handleWebsiteInfo(ctx, sessionID, userInput)

	case intent.Intent == pkg.IntentComboUpsell:
		return r.handleComboUpsell(ctx, sessionID, userInput, intent, memory)

	case isFollowUp:
		return r.handleFollowUp(ctx, sessionID, userInput, intent, memory)

	default:
		return r.handleRecommendation(ctx, sessionID, userInput, intent, memory)
	}
}

func (r *Router) handleSmallTalk(ctx context.Context, sessionID, userInput string) (string, []pkg.ProductCandidate, error) {
	reply, err := r.smallTalk.Generate(ctx, userInput)
	if err != nil {
		return "", nil, fmt.Errorf("small talk generation failed: %w", err)
	}
	if err := r.finishTurn(ctx, sessionID, userInput, reply, true); err != nil {
		return "", nil, err
	}
	return reply, nil, nil
}

func (r *Router) handleWebsiteInfo(ctx context.Context, sessionID, userInput string) (string, []pkg.ProductCandidate, error) {
	var products []pkg.ProductCandidate
	resources, err := r.metadata.Get()
	if err != nil && !errors.Is(err, catalog.ErrUnavailable) {
		return "", nil, err
	}
	if resources != nil {
		products = resources.Metadata
	}

	reply, err := r.summarizer.Generate(ctx, userInput, products)
	if err != nil {
		return "", nil, fmt.Errorf("catalog summary generation failed: %w", err)
	}
	if err := r.finishTurn(ctx, sessionID, userInput, reply, true); err != nil {
		return "", nil, err
	}
	return reply, nil, nil
}

func (r *Router) handleComboUpsell(ctx context.Context, sessionID, userInput string, intent *pkg.IntentData, memory *pkg.Memory) (string, []pkg.ProductCandidate, error) {
	if memory.LastQuery == "" {
		if err := r.finishTurn(ctx, sessionID, userInput, ComboClarifyReply, false); err != nil {
			return "", nil, err
		}
		return ComboClarifyReply, nil, nil
	}

	products, err := r.searcher.Search(ctx, memory.LastQuery, resultLimit, memory, pkg.ProductTypeCombo)
	if err != nil {
		return "", nil, err
	}
	if len(products) == 0 {
		if err := r.finishTurn(ctx, sessionID, userInput, ComboApologyReply, false); err != nil {
			return "", nil, err
		}
		return ComboApologyReply, nil, nil
	}

	comboType := pkg.ProductTypeCombo
	memory, err = r.sessions.Update(ctx, sessionID, pkg.MemoryUpdate{
		LastProducts: products,
		ProductType:  &comboType,
	})
	if err != nil {
		return "", nil, err
	}

	reply, selected, err := r.reasoner.GenerateAnswer(ctx, userInput, intent, products, memory.History)
	if err != nil {
		return "", nil, fmt.Errorf("reasoning failed: %w", err)
	}
	if err := r.finishTurn(ctx, sessionID, userInput, reply, true); err != nil {
		return "", nil, err
	}
	return reply, selected, nil
}

func (r *Router) handleFollowUp(ctx context.Context, sessionID, userInput string, intent *pkg.IntentData, memory *pkg.Memory) (string, []pkg.ProductCandidate, error) {
	candidates := memory.LastProducts
	if len(candidates) == 0 && len(memory.History) <= 1 {
		if err := r.finishTurn(ctx, sessionID, userInput, ShowOptionsFirstReply, false); err != nil {
			return "", nil, err
		}
		return ShowOptionsFirstReply, nil, nil
	}

	reply, selected, err := r.reasoner.GenerateAnswer(ctx, userInput, intent, candidates, memory.History)
	if err != nil {
		return "", nil, fmt.Errorf("reasoning failed: %w", err)
	}
	if err := r.finishTurn(ctx, sessionID, userInput, reply, true); err != nil {
		return "", nil, err
	}
	return reply, selected, nil
}

func (r *Router) handleRecommendation(ctx context.Context, sessionID, userInput string, intent *pkg.IntentData, memory *pkg.Memory) (string, []pkg.ProductCandidate, error) {
	update := pkg.MemoryUpdate{
		Preferences: intent.Constraints.Preferences,
	}
	if intent.ExplicitCategory != "" {
		category := intent.ExplicitCategory
		update.Category = &category
	}
	if budget := ParseBudget(intent.Constraints.Budget); budget != nil {
		update.Budget = budget
	}
	if intent.Intent != "" {
		label := intent.Intent
		update.Intent = &label
	}

	memory, err := r.sessions.Update(ctx, sessionID, update)
	if err != nil {
		return "", nil, err
	}

	if intent.RewrittenQuery == "" {
		if err := r.finishTurn(ctx, sessionID, userInput, ClarifyReply, false); err != nil {
			return "", nil, err
		}
		return ClarifyReply, nil, nil
	}

	filter := resolveTypeFilter(intent, memory)

	products, err := r.searcher.Search(ctx, intent.RewrittenQuery, resultLimit, memory, filter)
	if err != nil {
		return "", nil, err
	}
	products, effectiveFilter, err := r.searcher.WidenIfSparse(ctx, intent.RewrittenQuery, resultLimit, memory, filter, products)
	if err != nil {
		return "", nil, err
	}

	query := intent.RewrittenQuery
	memory, err = r.sessions.Update(ctx, sessionID, pkg.MemoryUpdate{
		LastProducts: products,
		LastQuery:    &query,
		ProductType:  &effectiveFilter,
	})
	if err != nil {
		return "", nil, err
	}

	reply, selected, err := r.reasoner.GenerateAnswer(ctx, userInput, intent, products, memory.History)
	if err != nil {
		return "", nil, fmt.Errorf("reasoning failed: %w", err)
	}
	if err := r.finishTurn(ctx, sessionID, userInput, reply, true); err != nil {
		return "", nil, err
	}
	return reply, selected, nil
}

// finishTurn appends the assistant reply to history and, for generated
// replies, writes it through the response cache.
func (r *Router) finishTurn(ctx context.Context, sessionID, userInput, reply string, cacheReply bool) error {
	if cacheReply {
		if err := r.cache.Put(ctx, sessionID, userInput, reply); err != nil {
			return err
		}
	}
	return r.sessions.AppendMessage(ctx, sessionID, "assistant", reply)
}

// resolveTypeFilter prefers this turn's classifier filter, then the sticky
// session filter, then single.
func resolveTypeFilter(intent *pkg.IntentData, memory *pkg.Memory) string {
	if intent.ProductTypeFilter != "" {
		return intent.ProductTypeFilter
	}
	if memory.ProductType != "" {
		return memory.ProductType
	}
	return pkg.ProductTypeSingle
}

var firstInteger = regexp.MustCompile(`\d+`)

// ParseBudget extracts the first integer substring from the classifier's raw
// budget text. No integer means no budget.
func ParseBudget(raw string) *int {
	match := firstInteger.FindString(raw)
	if match == "" {
		return nil
	}
	value, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &value
}

func (r *Router) sessionLock(sessionID string) *sync.Mutex {
	lock, _ := r.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
