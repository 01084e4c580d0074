package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/qdrant/go-client/qdrant"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/conversation/domain"
)

// Embedder turns a query into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{client: openai.NewClient(opts...), model: model}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response is empty")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

type pointQuerier func(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)

// QdrantKnowledgeStore answers similarity queries against a collection where
// every point carries tenant_id, content and source payload fields.
type QdrantKnowledgeStore struct {
	client     *qdrant.Client
	query      pointQuerier
	collection string
	embedder   Embedder
}

type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

func NewQdrantKnowledgeStore(cfg QdrantConfig, embedder Embedder) (*QdrantKnowledgeStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "knowledge"
	}
	return &QdrantKnowledgeStore{
		client:     client,
		query:      client.Query,
		collection: collection,
		embedder:   embedder,
	}, nil
}

func (s *QdrantKnowledgeStore) Query(ctx context.Context, tenantID, text string, topK int, threshold float32) ([]domain.Snippet, error) {
	text = strings.TrimSpace(text)
	if text == "" || topK <= 0 {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(topK)),
		ScoreThreshold: qdrant.PtrOf(threshold),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("tenant_id", tenantID)},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	snippets := make([]domain.Snippet, 0, len(results))
	for _, scored := range results {
		if scored.GetScore() < threshold {
			continue
		}
		payload := scored.GetPayload()
		content := payloadString(payload, "content")
		if content == "" {
			continue
		}
		snippets = append(snippets, domain.Snippet{
			ID:      pointIDString(scored.GetId()),
			Content: content,
			Source:  payloadString(payload, "source"),
			Score:   scored.GetScore(),
		})
		if len(snippets) == topK {
			break
		}
	}
	return snippets, nil
}

func (s *QdrantKnowledgeStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	return v.GetStringValue()
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

// DisabledKnowledgeStore is used for tenants or deployments without RAG.
type DisabledKnowledgeStore struct{}

func (DisabledKnowledgeStore) Query(context.Context, string, string, int, float32) ([]domain.Snippet, error) {
	return nil, nil
}
