package domain_test

import (
	"context"

	"careai/internal/domain"
)

// Compile-time interface checks.
var (
	_ domain.EmbeddingProvider = (*stubEmbedder)(nil)
	_ domain.ChatModel         = (*stubModel)(nil)
)

type stubEmbedder struct{}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func (s *stubEmbedder) Dimensions() int { return 3 }
func (s *stubEmbedder) Name() string    { return "stub" }

type stubModel struct{}

func (s *stubModel) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return &domain.ChatResponse{Model: req.Model}, nil
}

func (s *stubModel) Name() string { return "stub" }
