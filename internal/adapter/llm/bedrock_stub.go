//go:build !bedrock

package llm

import (
	"fmt"
	"log/slog"

	"careai/internal/domain"
	"careai/internal/infra/config"
)

// NewBedrockProvider is unavailable without the bedrock build tag.
func NewBedrockProvider(_ config.ProviderConfig, _ *slog.Logger) (domain.ChatModel, error) {
	return nil, fmt.Errorf("%w: bedrock provider requires build with -tags bedrock", domain.ErrNotSupported)
}
