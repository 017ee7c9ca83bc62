package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"legalmind/internal/llm"
	"legalmind/internal/models"
	"legalmind/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(client llm.Client) (*Service, *store.MemoryStore) {
	st := store.NewMemoryStore(time.Hour)
	return NewService(client, st), st
}

func strPtr(s string) *string { return &s }

func TestRunChatEmptyInput(t *testing.T) {
	fake := &llm.Fake{Reply: "x"}
	svc, _ := newTestService(fake)
	_, err := svc.RunChat(context.Background(), "   ", "sid", nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, fake.CallCount())
}

func TestRunChatHistoryGrowsByTwoPerTurn(t *testing.T) {
	ctx := context.Background()
	fake := &llm.Fake{Reply: "answer"}
	svc, st := newTestService(fake)

	for i := 1; i <= 3; i++ {
		reply, err := svc.RunChat(ctx, fmt.Sprintf("question %d", i), "sid", nil)
		require.NoError(t, err)
		assert.Equal(t, "answer", reply)

		history, err := st.History(ctx, "sid")
		require.NoError(t, err)
		require.Len(t, history, 2*i)
	}

	history, _ := st.History(ctx, "sid")
	for i, m := range history {
		if i%2 == 0 {
			assert.Equal(t, models.RoleUser, m.Role)
			assert.Equal(t, fmt.Sprintf("question %d", i/2+1), m.Content)
		} else {
			assert.Equal(t, models.RoleAssistant, m.Role)
		}
	}
}

func TestRunChatMessageAssembly(t *testing.T) {
	ctx := context.Background()
	fake := &llm.Fake{Reply: "12 months."}
	svc, st := newTestService(fake)

	_, err := svc.RunChat(ctx, "How long is the lease?", "sid", strPtr("Lease term: 12 months"))
	require.NoError(t, err)
	_, err = svc.RunChat(ctx, "And the rent?", "sid", strPtr("Lease term: 12 months"))
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 2)

	first := calls[0]
	require.Len(t, first, 2)
	assert.Equal(t, models.RoleSystem, first[0].Role)
	assert.Equal(t, SystemPrompt, first[0].Content)
	assert.Equal(t, "Based on the following document context:\n---\nLease term: 12 months\n---\n\nHow long is the lease?", first[1].Content)

	second := calls[1]
	require.Len(t, second, 4)
	// prior turns are replayed raw; only the current turn is enriched
	assert.Equal(t, "How long is the lease?", second[1].Content)
	assert.Equal(t, "12 months.", second[2].Content)
	assert.Contains(t, second[3].Content, "Based on the following document context")
	assert.Contains(t, second[3].Content, "And the rent?")

	history, err := st.History(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "How long is the lease?", history[0].Content)
}

func TestRunChatWithoutContextHasNoPreamble(t *testing.T) {
	fake := &llm.Fake{Reply: "ok"}
	svc, _ := newTestService(fake)

	_, err := svc.RunChat(context.Background(), "What is tort law?", "sid", strPtr(""))
	require.NoError(t, err)
	calls := fake.Calls()
	require.Len(t, calls, 1)
	last := calls[0][len(calls[0])-1]
	assert.Equal(t, "What is tort law?", last.Content)
	assert.NotContains(t, last.Content, "Based on the following document context")
}

func TestRunChatNilContextIgnoresStoredDocument(t *testing.T) {
	ctx := context.Background()
	fake := &llm.Fake{Reply: "ok"}
	svc, st := newTestService(fake)
	require.NoError(t, st.PutDocument(ctx, "sid", "Clause 7: termination"))

	_, err := svc.RunChat(ctx, "Summarize clause 7", "sid", nil)
	require.NoError(t, err)
	calls := fake.Calls()
	require.Len(t, calls, 1)
	last := calls[0][len(calls[0])-1]
	assert.Equal(t, "Summarize clause 7", last.Content)
	assert.NotContains(t, last.Content, "Based on the following document context")
}

func TestRunChatLLMFailureAppendsNothing(t *testing.T) {
	ctx := context.Background()
	fake := &llm.Fake{Err: errors.New("connection reset")}
	svc, st := newTestService(fake)

	reply, err := svc.RunChat(ctx, "hello", "sid", nil)
	require.NoError(t, err)
	assert.Equal(t, ChatApology, reply)

	history, err := st.History(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRunChatUnavailable(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(nil)

	reply, err := svc.RunChat(ctx, "hello", "sid", nil)
	require.NoError(t, err)
	assert.Equal(t, UnavailableMessage, reply)

	reply, err = svc.RunChat(ctx, "generate contract: nda: A and B", "sid", nil)
	require.NoError(t, err)
	assert.Equal(t, ContractUnavailableMessage, reply)

	history, _ := st.History(ctx, "sid")
	assert.Empty(t, history)
}

func TestRunChatRoutesContractCommand(t *testing.T) {
	ctx := context.Background()
	fake := &llm.Fake{Reply: "NDA BODY"}
	svc, st := newTestService(fake)

	reply, err := svc.RunChat(ctx, "generate contract: NDA: parties are A and B", "sid", strPtr("some doc"))
	require.NoError(t, err)
	assert.Contains(t, reply, "Here is the draft Nda:")

	calls := fake.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)
	assert.Equal(t, "You are tasked with generating a NDA contract.", calls[0][0].Content)
	assert.Contains(t, calls[0][1].Content, "Please incorporate these user details:\nparties are A and B\n\nGenerate the full contract text.")
	assert.NotContains(t, calls[0][1].Content, "some doc")
	assert.NotEqual(t, SystemPrompt, calls[0][0].Content)

	history, _ := st.History(ctx, "sid")
	assert.Empty(t, history, "contract flow must not touch chat history")
}

func TestRunChatMalformedCommand(t *testing.T) {
	fake := &llm.Fake{Reply: "x"}
	svc, _ := newTestService(fake)

	reply, err := svc.RunChat(context.Background(), "generate contract: badtype", "sid", nil)
	require.NoError(t, err)
	assert.Equal(t, HelpMessage, reply)
	assert.Zero(t, fake.CallCount())
}

func TestRunContractFlowUnsupportedType(t *testing.T) {
	fake := &llm.Fake{Reply: "x"}
	svc, _ := newTestService(fake)

	reply, err := svc.RunContractFlow(context.Background(), "unknown_type", "any details", "sid")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, contract type 'unknown_type' is not supported.", reply)
	assert.Zero(t, fake.CallCount())
}

func TestRunContractFlowEnvelope(t *testing.T) {
	fake := &llm.Fake{Reply: "MUTUAL NON-DISCLOSURE AGREEMENT ..."}
	svc, _ := newTestService(fake)

	reply, err := svc.RunContractFlow(context.Background(), "nda", "Party A: Acme, Party B: Beta", "sid")
	require.NoError(t, err)
	assert.Equal(t,
		"Here is the draft Nda:\n\n```\nMUTUAL NON-DISCLOSURE AGREEMENT ...\n```\n"+Disclaimer,
		reply)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	template, ok := svc.Registry().Lookup("nda")
	require.True(t, ok)
	assert.Equal(t,
		template+"\n\nPlease incorporate these user details:\nParty A: Acme, Party B: Beta\n\nGenerate the full contract text.",
		calls[0][1].Content)
}

func TestRunContractFlowFailure(t *testing.T) {
	fake := &llm.Fake{Err: errors.New("quota exceeded")}
	svc, _ := newTestService(fake)

	reply, err := svc.RunContractFlow(context.Background(), "Rental Agreement", "tenant Bob", "sid")
	require.NoError(t, err)
	assert.Equal(t, ContractApology, reply)
}

type failingHistory struct{ store.HistoryStore }

func (failingHistory) History(context.Context, string) ([]*models.Message, error) {
	return nil, errors.New("disk on fire")
}

func TestRunChatStoreFailureEscalates(t *testing.T) {
	fake := &llm.Fake{Reply: "x"}
	st := store.NewMemoryStore(time.Hour)
	svc := NewService(fake, failingHistory{st})

	_, err := svc.RunChat(context.Background(), "hello", "sid", nil)
	assert.Error(t, err)
	assert.Zero(t, fake.CallCount())
}

func TestRunChatSerializesSameSession(t *testing.T) {
	var inFlight, maxInFlight int32
	fake := &llm.Fake{Reply: "ok"}
	fake.Hook = func(context.Context, []*models.Message) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}
	svc, st := newTestService(fake)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.RunChat(context.Background(), fmt.Sprintf("q%d", i), "sid", nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	history, _ := st.History(context.Background(), "sid")
	assert.Len(t, history, 16)
	// each turn saw every earlier pair, so pairs stay adjacent
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, models.RoleUser, history[i].Role)
		assert.Equal(t, models.RoleAssistant, history[i+1].Role)
	}
}

func TestRunChatDifferentSessionsRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	var started int32
	fake := &llm.Fake{Reply: "ok"}
	fake.Hook = func(context.Context, []*models.Message) {
		atomic.AddInt32(&started, 1)
		<-release
	}
	svc, _ := newTestService(fake)

	var wg sync.WaitGroup
	for _, sid := range []string{"a", "b"} {
		wg.Add(1)
		go func(sid string) {
			defer wg.Done()
			_, _ = svc.RunChat(context.Background(), "hi", sid, nil)
		}(sid)
	}
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&started) == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
}
