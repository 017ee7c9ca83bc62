package llm

import (
	"context"
	"sync"

	"legalmind/internal/models"
)

// Fake is an in-memory Client that records every conversation it receives.
// Err, when set, is returned wrapped in a ServiceError.
type Fake struct {
	mu    sync.Mutex
	Reply string
	Err   error
	// Hook, when set, runs before the reply is produced.
	Hook  func(ctx context.Context, messages []*models.Message)
	calls [][]*models.Message
}

func (f *Fake) Complete(ctx context.Context, messages []*models.Message) (string, error) {
	cp := make([]*models.Message, len(messages))
	for i, m := range messages {
		msg := *m
		cp[i] = &msg
	}
	f.mu.Lock()
	f.calls = append(f.calls, cp)
	hook, reply, err := f.Hook, f.Reply, f.Err
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, cp)
	}
	if err != nil {
		return "", &ServiceError{Provider: "fake", Op: "generate", Err: err}
	}
	return reply, nil
}

// Calls returns the conversations received so far.
func (f *Fake) Calls() [][]*models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]*models.Message, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
