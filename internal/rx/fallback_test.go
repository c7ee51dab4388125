package rx

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/rxglue/internal/cache"
)

type fakeChat struct {
	content string
	err     error
	calls   int32
	last    openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	f.last = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.content}},
	}}, nil
}

func TestLLMFallback_JSONReplyAndCache(t *testing.T) {
	chat := &fakeChat{content: "```json\n{\"name\":\"Warfarin\",\"dosage\":\"5 mg\",\"frequency\":\"daily\",\"duration\":\"\"}\n```"}
	f := &LLMFallback{Client: chat, Model: "m", Cache: &cache.ReplyCache{Dir: t.TempDir()}}

	for i := 0; i < 2; i++ {
		d, ok := f.Lookup(context.Background(), "Continue Warfarin.")
		if !ok || d.Name != "Warfarin" || d.Dosage != "5 mg" || d.Frequency != "daily" {
			t.Fatalf("lookup %d: %+v ok=%v", i, d, ok)
		}
	}
	if n := atomic.LoadInt32(&chat.calls); n != 1 {
		t.Fatalf("expected one model call thanks to cache, got %d", n)
	}
	if chat.last.Model != "m" || len(chat.last.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", chat.last)
	}
	if chat.last.Messages[1].Content != "Input: 'Continue Warfarin.'" {
		t.Fatalf("user message=%q", chat.last.Messages[1].Content)
	}
}

func TestLLMFallback_Unconfigured(t *testing.T) {
	var f *LLMFallback
	if _, ok := f.Lookup(context.Background(), "x"); ok {
		t.Fatalf("nil fallback must report no result")
	}
	chat := &fakeChat{content: `{"name":"x"}`}
	if _, ok := (&LLMFallback{Client: chat}).Lookup(context.Background(), "x"); ok {
		t.Fatalf("fallback without model must report no result")
	}
	if chat.calls != 0 {
		t.Fatalf("no model call expected")
	}
}

func TestLLMFallback_ErrorIsSwallowed(t *testing.T) {
	f := &LLMFallback{Client: &fakeChat{err: errors.New("connection refused")}, Model: "m"}
	if _, ok := f.Lookup(context.Background(), "x"); ok {
		t.Fatalf("expected no result on model error")
	}
}

func TestParseReply_LineFormat(t *testing.T) {
	d, err := ParseReply("Condition: Acid reflux\nDrug: Omeprazole\nDosage: 20 mg\nFrequency: once daily\nDuration: ...")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Drug{Condition: "Acid reflux", Name: "Omeprazole", Dosage: "20 mg", Frequency: "once daily"}
	if d != want {
		t.Fatalf("got %+v, want %+v", d, want)
	}
}

func TestParseReply_SchemaViolationFallsBackToLines(t *testing.T) {
	// name is a number, so the JSON path is rejected and nothing line-shaped
	// remains usable beyond the raw object text.
	if _, err := ParseReply(`{"name": 5}`); err == nil {
		t.Fatalf("expected error for schema-invalid reply")
	}
	if _, err := ParseReply("   "); err == nil {
		t.Fatalf("expected error for empty reply")
	}
}

type blockingChat struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (b *blockingChat) CreateChatCompletion(ctx context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	close(b.started)
	<-b.release
	b.ctxErr <- ctx.Err()
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: `{"name":"Warfarin","dosage":"5 mg"}`}},
	}}, nil
}

func TestLLMFallback_CallerCancelDoesNotCancelSharedCall(t *testing.T) {
	chat := &blockingChat{started: make(chan struct{}), release: make(chan struct{}), ctxErr: make(chan error, 1)}
	f := &LLMFallback{Client: chat, Model: "m"}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan bool, 1)
	go func() {
		_, ok := f.Lookup(ctx, "Warfarin as before.")
		first <- ok
	}()
	<-chat.started
	cancel()
	if ok := <-first; ok {
		t.Fatalf("cancelled caller must not report a result")
	}

	close(chat.release)
	if err := <-chat.ctxErr; err != nil {
		t.Fatalf("model call saw cancelled context: %v", err)
	}
}
