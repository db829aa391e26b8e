package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptedLLM struct {
	mu        sync.Mutex
	failures  int
	reply     string
	calls     int
	lastReq   LLMRequest
	permanent bool
}

func (s *scriptedLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastReq = req
	if s.permanent || s.calls <= s.failures {
		return LLMResponse{}, errors.New("backend unavailable")
	}
	return LLMResponse{Text: s.reply, Usage: TokenUsage{InputTokens: 10, OutputTokens: 5}}, nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestGenerator(llm LLMClient, opts ...GeneratorOption) *Generator {
	base := []GeneratorOption{WithRetryBaseDelay(time.Millisecond), WithCallTimeout(time.Second)}
	return NewGenerator(llm, "test", NewThrottle(0, 0), nil, nil, append(base, opts...)...)
}

func TestGenerateReturnsCompletion(t *testing.T) {
	llm := &scriptedLLM{reply: "  Hello!  "}
	gen := newTestGenerator(llm)

	got := gen.Generate(context.Background(), GenerationInput{
		ConversationID: "conv-1",
		System:         []string{"be brief"},
		History:        []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})
	if got != "Hello!" {
		t.Fatalf("reply = %q, want trimmed completion", got)
	}
	if llm.callCount() != 1 {
		t.Fatalf("calls = %d, want 1", llm.callCount())
	}
	if len(llm.lastReq.System) != 1 || llm.lastReq.System[0] != "be brief" {
		t.Errorf("system = %#v", llm.lastReq.System)
	}
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	llm := &scriptedLLM{failures: 2, reply: "recovered"}
	gen := newTestGenerator(llm)

	got := gen.Generate(context.Background(), GenerationInput{ConversationID: "conv-1"})
	if got != "recovered" {
		t.Fatalf("reply = %q", got)
	}
	if llm.callCount() != 3 {
		t.Fatalf("calls = %d, want 3 (two failures + success)", llm.callCount())
	}
}

func TestGenerateFallsBackAfterExhaustion(t *testing.T) {
	llm := &scriptedLLM{permanent: true}
	gen := newTestGenerator(llm)

	got := gen.Generate(context.Background(), GenerationInput{ConversationID: "conv-1"})
	if got != failureReply {
		t.Fatalf("reply = %q, want fixed failure sentence", got)
	}
	if llm.callCount() != defaultMaxAttempts {
		t.Fatalf("calls = %d, want %d", llm.callCount(), defaultMaxAttempts)
	}
}

func TestGenerateNeverReturnsEmpty(t *testing.T) {
	llm := &scriptedLLM{reply: "   "}
	gen := newTestGenerator(llm)

	got := gen.Generate(context.Background(), GenerationInput{ConversationID: "conv-1"})
	if got != emptyReply {
		t.Fatalf("reply = %q, want fixed substitute for blank completion", got)
	}
}

func TestGenerateHonorsMaxAttemptsOption(t *testing.T) {
	llm := &scriptedLLM{permanent: true}
	gen := newTestGenerator(llm, WithMaxAttempts(1))

	if got := gen.Generate(context.Background(), GenerationInput{ConversationID: "c"}); got != failureReply {
		t.Fatalf("reply = %q", got)
	}
	if llm.callCount() != 1 {
		t.Fatalf("calls = %d, want 1", llm.callCount())
	}
}

func TestGenerateCancelledContext(t *testing.T) {
	llm := &scriptedLLM{permanent: true}
	gen := newTestGenerator(llm, WithRetryBaseDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The first attempt runs, the retry sleep aborts on the dead context
	// and the generator falls back instead of hanging.
	done := make(chan string, 1)
	go func() {
		done <- gen.Generate(ctx, GenerationInput{ConversationID: "conv-1"})
	}()

	select {
	case got := <-done:
		if got != failureReply {
			t.Fatalf("reply = %q, want failure sentence", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("generate did not return after context cancellation")
	}
}
