package llm

import (
	"context"
	"fmt"
	"strings"

	"legalmind/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

const defaultClaudeMaxTokens = 3000

// chatModelFactory is swapped in tests.
var chatModelFactory = newChatModel

// New builds the client for the provider selected in cfg. It returns ErrUnavailable
// when the provider has no API key.
func New(ctx context.Context, cfg *config.Config) (*ChatClient, error) {
	name, prov := cfg.ActiveProvider()
	if name == "" {
		return nil, fmt.Errorf("no provider selected: %w", ErrUnavailable)
	}
	if strings.TrimSpace(prov.APIKey) == "" {
		return nil, fmt.Errorf("provider %s has no api key: %w", name, ErrUnavailable)
	}
	m, err := chatModelFactory(ctx, name, prov, cfg.LLM)
	if err != nil {
		return nil, err
	}
	return NewChatClient(name, m, cfg.LLMTimeout()), nil
}

func newChatModel(ctx context.Context, provider string, prov config.ProviderConfig, opts config.LLMConfig) (model.BaseChatModel, error) {
	temperature := opts.Temperature
	var maxTokens *int
	if opts.MaxTokens > 0 {
		n := opts.MaxTokens
		maxTokens = &n
	}

	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch provider {
	case "openai", "groq":
		// groq speaks the OpenAI protocol; only the base URL differs
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     prov.BaseURL,
			Model:       prov.Model,
			APIKey:      prov.APIKey,
			Temperature: &temperature,
			MaxTokens:   maxTokens,
		})
	case "deepseek":
		chatModel, err = deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:      prov.APIKey,
			Model:       prov.Model,
			BaseURL:     prov.BaseURL,
			MaxTokens:   opts.MaxTokens,
			Temperature: temperature,
		})
	case "gemini":
		client, cerr := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  prov.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if cerr != nil {
			return nil, fmt.Errorf("create gemini client: %w", cerr)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       prov.Model,
			Temperature: &temperature,
			MaxTokens:   maxTokens,
		})
	case "claude":
		var baseURLPtr *string
		if prov.BaseURL != "" {
			baseURLPtr = &prov.BaseURL
		}
		claudeMax := defaultClaudeMaxTokens
		if opts.MaxTokens > 0 {
			claudeMax = opts.MaxTokens
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:      prov.APIKey,
			Model:       prov.Model,
			BaseURL:     baseURLPtr,
			MaxTokens:   claudeMax,
			Temperature: &temperature,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	return chatModel, nil
}
