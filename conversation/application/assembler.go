package application

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/conversation/domain"
	"golang.org/x/sync/errgroup"
)

type AssemblerConfig struct {
	HistoryLimit int
	TopK         int
	Threshold    float32
}

// Assembler gathers the conversation history and the knowledge snippets a
// generation needs. Both lookups run concurrently.
type Assembler struct {
	history   domain.HistoryStore
	knowledge domain.KnowledgeStore
	cfg       AssemblerConfig
}

func NewAssembler(history domain.HistoryStore, knowledge domain.KnowledgeStore, cfg AssemblerConfig) *Assembler {
	if knowledge == nil {
		knowledge = noKnowledge{}
	}
	return &Assembler{history: history, knowledge: knowledge, cfg: cfg}
}

// Assemble returns the context for a reply. A knowledge store failure
// degrades to an empty snippet list; a history failure is returned.
func (a *Assembler) Assemble(ctx context.Context, tenantID, phone, text string, useKnowledge bool) (domain.ConversationContext, error) {
	var (
		out      domain.ConversationContext
		ragErr   error
		snippets []domain.Snippet
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		history, err := a.history.FetchRecent(gctx, tenantID, phone, a.cfg.HistoryLimit)
		if err != nil {
			return fmt.Errorf("fetch history: %w", err)
		}
		out.History = history
		return nil
	})
	if useKnowledge && a.cfg.TopK > 0 {
		g.Go(func() error {
			// own context: a history failure must not look like a RAG failure
			snippets, ragErr = a.knowledge.Query(ctx, tenantID, text, a.cfg.TopK, a.cfg.Threshold)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ConversationContext{}, err
	}

	if ragErr != nil {
		logrus.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"phone":     phone,
		}).WithError(ragErr).Warn("[CONTEXT] knowledge lookup failed, continuing without snippets")
		out.RAGDegraded = true
		return out, nil
	}
	out.Snippets = filterSnippets(snippets, a.cfg.TopK, a.cfg.Threshold)
	return out, nil
}

func filterSnippets(in []domain.Snippet, topK int, threshold float32) []domain.Snippet {
	out := make([]domain.Snippet, 0, len(in))
	for _, s := range in {
		if s.Score < threshold {
			continue
		}
		out = append(out, s)
		if len(out) == topK {
			break
		}
	}
	return out
}

type noKnowledge struct{}

func (noKnowledge) Query(context.Context, string, string, int, float32) ([]domain.Snippet, error) {
	return nil, nil
}
