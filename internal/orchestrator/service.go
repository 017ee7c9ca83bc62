package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"legalmind/internal/contracts"
	"legalmind/internal/llm"
	"legalmind/internal/logging"
	"legalmind/internal/models"
	"legalmind/internal/store"
)

// ErrEmptyInput is returned for blank chat input. Callers are expected to reject it first.
var ErrEmptyInput = errors.New("user input is empty")

const contractKeySuffix = "/contract"

// Service classifies chat input, assembles prompts and relays the model's reply.
type Service struct {
	client   llm.Client
	history  store.HistoryStore
	registry *contracts.Registry
	runner   TurnRunner
}

type Option func(*Service)

func WithRegistry(r *contracts.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithRunner replaces the default in-process KeyedMutex.
func WithRunner(r TurnRunner) Option {
	return func(s *Service) {
		if r != nil {
			s.runner = r
		}
	}
}

// NewService wires the orchestrator. A nil client makes every turn answer with the unavailable message.
func NewService(client llm.Client, history store.HistoryStore, opts ...Option) *Service {
	s := &Service{
		client:   client,
		history:  history,
		registry: contracts.Default,
		runner:   NewKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Registry() *contracts.Registry { return s.registry }

// Available reports whether an LLM client is configured.
func (s *Service) Available() bool { return s.client != nil }

// RunChat answers one chat turn. documentContext nil or empty means no document preamble.
// Model failures are answered with fixed text; only store faults are returned as errors.
func (s *Service) RunChat(ctx context.Context, userInput, sessionID string, documentContext *string) (string, error) {
	if strings.TrimSpace(userInput) == "" {
		return "", ErrEmptyInput
	}
	log := logging.FromContext(ctx).With("session_id", sessionID)

	switch req := Classify(userInput).(type) {
	case MalformedCommand:
		log.Info("malformed contract command")
		return HelpMessage, nil
	case GenerateRequest:
		log.Info("contract generation requested via chat",
			"contract_type", req.Type,
			"details", logging.Truncate(req.Details, 50))
		return s.RunContractFlow(ctx, req.Type, req.Details, sessionID)
	case ChatRequest:
		return s.runChatTurn(ctx, req.Input, sessionID, documentContext)
	default:
		return "", fmt.Errorf("unknown request type %T", req)
	}
}

func (s *Service) runChatTurn(ctx context.Context, input, sessionID string, documentContext *string) (string, error) {
	log := logging.FromContext(ctx).With("session_id", sessionID)
	if s.client == nil {
		log.Warn("chat requested but llm is not configured")
		return UnavailableMessage, nil
	}

	var reply string
	err := s.runner.Do(ctx, sessionID, func(ctx context.Context) error {
		docText := ""
		if documentContext != nil {
			docText = *documentContext
		}

		prior, err := s.history.History(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}

		log.Info("chat turn",
			"input", logging.Truncate(input, 50),
			"history_len", len(prior),
			"has_context", docText != "")

		out, err := s.client.Complete(ctx, chatMessages(sessionID, prior, input, docText))
		if err != nil {
			if errors.Is(err, llm.ErrUnavailable) {
				reply = UnavailableMessage
				return nil
			}
			log.Error("llm chat call failed", "error", err)
			reply = ChatApology
			return nil
		}

		if err := s.history.AppendMessages(ctx, sessionID,
			models.NewMessage(sessionID, models.RoleUser, input),
			models.NewMessage(sessionID, models.RoleAssistant, out),
		); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		reply = out
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// RunContractFlow drafts a contract from a registry template. It never reads or writes
// session history or document context.
func (s *Service) RunContractFlow(ctx context.Context, contractType, details, sessionID string) (string, error) {
	log := logging.FromContext(ctx).With("session_id", sessionID, "contract_type", contractType)

	template, ok := s.registry.Lookup(contractType)
	if !ok {
		log.Warn("unsupported contract type")
		return UnsupportedContractMessage(contractType), nil
	}
	if s.client == nil {
		log.Warn("contract requested but llm is not configured")
		return ContractUnavailableMessage, nil
	}

	var reply string
	err := s.runner.Do(ctx, sessionID+contractKeySuffix, func(ctx context.Context) error {
		out, err := s.client.Complete(ctx, contractMessages(sessionID, contractType, template, details))
		if err != nil {
			if errors.Is(err, llm.ErrUnavailable) {
				reply = ContractUnavailableMessage
				return nil
			}
			log.Error("llm contract call failed", "error", err)
			reply = ContractApology
			return nil
		}
		log.Info("contract generated", "characters", len(out))
		reply = ContractEnvelope(contractType, out)
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}
