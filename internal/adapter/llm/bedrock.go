//go:build bedrock

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/trace"

	"careai/internal/domain"
	"careai/internal/infra/config"
	"careai/internal/infra/tracer"
)

const defaultBedrockModel = "anthropic.claude-3-sonnet-20240229-v1:0"

// bedrockConverseAPI abstracts the Bedrock runtime for testability.
type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider implements domain.ChatModel via the AWS Bedrock Converse API.
type BedrockProvider struct {
	name   string
	model  string
	client bedrockConverseAPI
	logger *slog.Logger
}

// NewBedrockProvider creates a Bedrock provider using the default AWS credential chain.
func NewBedrockProvider(cfg config.ProviderConfig, logger *slog.Logger) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultBedrockModel
	}
	return newBedrockProviderWithClient(cfg.Name, model, bedrockruntime.NewFromConfig(awsCfg), logger), nil
}

func newBedrockProviderWithClient(name, model string, client bedrockConverseAPI, logger *slog.Logger) *BedrockProvider {
	return &BedrockProvider{
		name:   name,
		model:  model,
		client: client,
		logger: logger,
	}
}

// Chat implements domain.ChatModel.
func (p *BedrockProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if req.Model == "" {
		req.Model = p.model
	}

	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.name),
			tracer.StringAttr("llm.model", req.Model),
		),
	)
	defer span.End()

	output, err := p.client.Converse(ctx, toBedrockConverseInput(req))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, mapBedrockError(p.name, err)
	}

	result := fromBedrockConverseOutput(output, req.Model)
	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	logChatCompleted(p.logger, p.name, result)

	return result, nil
}

// Name implements domain.ChatModel.
func (p *BedrockProvider) Name() string { return p.name }

// Model returns the default model.
func (p *BedrockProvider) Model() string { return p.model }

func toBedrockConverseInput(req domain.ChatRequest) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.Model),
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = domain.DefaultMaxTokens
	}
	input.InferenceConfig = &types.InferenceConfiguration{
		MaxTokens: aws.Int32(int32(maxTokens)),
	}
	if req.Temperature > 0 {
		input.InferenceConfig.Temperature = aws.Float32(float32(req.Temperature))
	}

	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: m.Content})
		case domain.RoleAssistant:
			input.Messages = append(input.Messages, types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})
		default:
			input.Messages = append(input.Messages, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})
		}
	}
	return input
}

func fromBedrockConverseOutput(output *bedrockruntime.ConverseOutput, model string) *domain.ChatResponse {
	now := time.Now()
	result := &domain.ChatResponse{
		Model:     model,
		CreatedAt: now,
	}

	if output.Usage != nil {
		in := int(aws.ToInt32(output.Usage.InputTokens))
		out := int(aws.ToInt32(output.Usage.OutputTokens))
		result.Usage = domain.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
	}

	var text strings.Builder
	if outMsg, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range outMsg.Value.Content {
			if b, ok := block.(*types.ContentBlockMemberText); ok {
				text.WriteString(b.Value)
			}
		}
	}

	result.Message = domain.Message{
		Role:      domain.RoleAssistant,
		Content:   text.String(),
		Timestamp: now,
	}
	return result
}

// mapBedrockError classifies AWS API errors into provider error categories.
func mapBedrockError(provider string, err error) error {
	msg := err.Error()

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); {
		case code == "ThrottlingException" || code == "TooManyRequestsException":
			return &domain.ProviderError{Provider: provider, Op: "chat", Retryable: true, Err: fmt.Errorf("%w: %s", domain.ErrRateLimit, msg)}
		case code == "AccessDeniedException" || code == "UnrecognizedClientException":
			return &domain.ProviderError{Provider: provider, Op: "chat", Err: fmt.Errorf("%w: %s", domain.ErrAuthInvalid, msg)}
		case code == "ValidationException" && strings.Contains(msg, "too long"):
			return &domain.ProviderError{Provider: provider, Op: "chat", Err: fmt.Errorf("%w: %s", domain.ErrContextOverflow, msg)}
		case code == "ModelNotReadyException" || code == "ServiceUnavailableException" ||
			code == "InternalServerException" || code == "ModelTimeoutException":
			return &domain.ProviderError{Provider: provider, Op: "chat", Retryable: true, Err: fmt.Errorf("%w: %s", domain.ErrProviderError, msg)}
		}
	}

	return domain.TransportError(provider, "chat", err)
}
