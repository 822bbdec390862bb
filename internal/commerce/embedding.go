package commerce

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	pgvector "github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// EmbeddingDimensions matches the products.embedding vector column
const EmbeddingDimensions = 768

// Embedder turns text into a vector for similarity search
type Embedder interface {
	Embed(ctx context.Context, text string) (pgvector.Vector, error)
}

// HashEmbedder is a deterministic, offline embedder based on feature hashing
// of words and adjacent word pairs. Similar wording gives nearby vectors.
type HashEmbedder struct{}

// Embed implements Embedder
func (HashEmbedder) Embed(_ context.Context, text string) (pgvector.Vector, error) {
	vec := make([]float32, EmbeddingDimensions)
	tokens := tokenize(text)

	add := func(feature string, weight float32) {
		h := fnv.New32a()
		h.Write([]byte(feature))
		sum := h.Sum32()
		idx := sum % EmbeddingDimensions
		if sum&(1<<31) != 0 {
			weight = -weight
		}
		vec[idx] += weight
	}

	for i, tok := range tokens {
		add(tok, 1)
		if i > 0 {
			add(tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return pgvector.NewVector(vec), nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// GenAIEmbedder embeds text with the Gemini embedding API
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

// NewEmbedder returns the embedder named by EMBEDDING_PROVIDER: "hash" (the
// default) or "gemini"
func NewEmbedder(ctx context.Context, provider, apiKey string) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "hash":
		return HashEmbedder{}, nil
	case "gemini":
		e, err := NewGenAIEmbedder(ctx, apiKey, "")
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}

// NewGenAIEmbedder creates an embedder backed by gemini-embedding-001 unless model is set
func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIEmbedder{client: client, model: model}, nil
}

// Embed implements Embedder
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dims := int32(EmbeddingDimensions)
	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{
			TaskType:             "SEMANTIC_SIMILARITY",
			OutputDimensionality: &dims,
		},
	)
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return pgvector.Vector{}, fmt.Errorf("no embeddings returned")
	}
	return pgvector.NewVector(result.Embeddings[0].Values), nil
}
