package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/conversation/domain"
)

type fakeHistory struct {
	fetch func(ctx context.Context, tenantID, phone string, limit int) ([]domain.ChatMessage, error)
}

func (f *fakeHistory) Append(context.Context, *domain.ChatMessage) error { return nil }
func (f *fakeHistory) FetchRecent(ctx context.Context, tenantID, phone string, limit int) ([]domain.ChatMessage, error) {
	return f.fetch(ctx, tenantID, phone, limit)
}
func (f *fakeHistory) UpdateDeliveryStatus(context.Context, string, string, string) error { return nil }
func (f *fakeHistory) SetReaction(context.Context, string, string, string) error          { return nil }

type fakeKnowledge struct {
	query func(ctx context.Context, tenantID, text string, topK int, threshold float32) ([]domain.Snippet, error)
	calls int32
}

func (f *fakeKnowledge) Query(ctx context.Context, tenantID, text string, topK int, threshold float32) ([]domain.Snippet, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.query(ctx, tenantID, text, topK, threshold)
}

var cfg = AssemblerConfig{HistoryLimit: 10, TopK: 2, Threshold: 0.7}

func TestAssemble_RunsLookupsConcurrently(t *testing.T) {
	release := make(chan struct{})
	history := &fakeHistory{fetch: func(ctx context.Context, tenantID, phone string, limit int) ([]domain.ChatMessage, error) {
		<-release
		return []domain.ChatMessage{{Content: "oi"}}, nil
	}}
	knowledge := &fakeKnowledge{query: func(ctx context.Context, tenantID, text string, topK int, threshold float32) ([]domain.Snippet, error) {
		close(release) // would deadlock if the lookups ran one after the other
		return []domain.Snippet{{Content: "a", Score: 0.9}, {Content: "b", Score: 0.5}, {Content: "c", Score: 0.8}, {Content: "d", Score: 0.95}}, nil
	}}

	done := make(chan struct{})
	var got domain.ConversationContext
	var err error
	go func() {
		got, err = NewAssembler(history, knowledge, cfg).Assemble(context.Background(), "acme", "5511", "horário", true)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Assemble did not run history and knowledge in parallel")
	}
	require.NoError(t, err)
	assert.Len(t, got.History, 1)
	require.Len(t, got.Snippets, 2)
	assert.Equal(t, "a", got.Snippets[0].Content)
	assert.Equal(t, "c", got.Snippets[1].Content)
	assert.False(t, got.RAGDegraded)
}

func TestAssemble_KnowledgeFailureDegrades(t *testing.T) {
	history := &fakeHistory{fetch: func(context.Context, string, string, int) ([]domain.ChatMessage, error) {
		return []domain.ChatMessage{{Content: "oi"}}, nil
	}}
	knowledge := &fakeKnowledge{query: func(context.Context, string, string, int, float32) ([]domain.Snippet, error) {
		return nil, errors.New("qdrant unavailable")
	}}

	got, err := NewAssembler(history, knowledge, cfg).Assemble(context.Background(), "acme", "5511", "x", true)
	require.NoError(t, err)
	assert.Empty(t, got.Snippets)
	assert.True(t, got.RAGDegraded)
	assert.Len(t, got.History, 1)
}

func TestAssemble_HistoryFailureIsReturned(t *testing.T) {
	history := &fakeHistory{fetch: func(context.Context, string, string, int) ([]domain.ChatMessage, error) {
		return nil, errors.New("db down")
	}}
	knowledge := &fakeKnowledge{query: func(context.Context, string, string, int, float32) ([]domain.Snippet, error) {
		return []domain.Snippet{{Content: "a", Score: 1}}, nil
	}}

	_, err := NewAssembler(history, knowledge, cfg).Assemble(context.Background(), "acme", "5511", "x", true)
	assert.ErrorContains(t, err, "db down")
}

func TestAssemble_KnowledgeSkippedWhenDisabled(t *testing.T) {
	history := &fakeHistory{fetch: func(context.Context, string, string, int) ([]domain.ChatMessage, error) {
		return nil, nil
	}}
	knowledge := &fakeKnowledge{query: func(context.Context, string, string, int, float32) ([]domain.Snippet, error) {
		return []domain.Snippet{{Content: "a", Score: 1}}, nil
	}}

	got, err := NewAssembler(history, knowledge, cfg).Assemble(context.Background(), "acme", "5511", "x", false)
	require.NoError(t, err)
	assert.Empty(t, got.Snippets)
	assert.EqualValues(t, 0, atomic.LoadInt32(&knowledge.calls))
}
