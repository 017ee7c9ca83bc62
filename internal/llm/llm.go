package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"legalmind/internal/models"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrUnavailable is returned when no provider could be configured, typically a missing API key.
var ErrUnavailable = errors.New("llm not available")

// ServiceError wraps any failure of the remote model: network, auth, quota, malformed reply.
type ServiceError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Client sends an ordered, role-tagged conversation and returns the model's text reply.
type Client interface {
	Complete(ctx context.Context, messages []*models.Message) (string, error)
}

// ChatClient adapts an eino chat model to Client.
type ChatClient struct {
	provider string
	model    model.BaseChatModel
	timeout  time.Duration
}

// NewChatClient wraps m. A zero timeout leaves the caller's deadline untouched.
func NewChatClient(provider string, m model.BaseChatModel, timeout time.Duration) *ChatClient {
	return &ChatClient{provider: provider, model: m, timeout: timeout}
}

func (c *ChatClient) Provider() string { return c.provider }

func (c *ChatClient) Complete(ctx context.Context, messages []*models.Message) (string, error) {
	if c == nil || c.model == nil {
		return "", ErrUnavailable
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.model.Generate(ctx, toSchema(messages))
	if err != nil {
		return "", &ServiceError{Provider: c.provider, Op: "generate", Err: err}
	}
	if resp == nil {
		return "", &ServiceError{Provider: c.provider, Op: "generate", Err: errors.New("empty response")}
	}
	return resp.Content, nil
}

func toSchema(messages []*models.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		var role schema.RoleType
		switch msg.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		out = append(out, &schema.Message{Role: role, Content: msg.Content})
	}
	return out
}
