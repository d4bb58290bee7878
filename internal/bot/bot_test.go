package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opsintel/intelbot/internal/bus"
	"github.com/opsintel/intelbot/internal/config"
	"github.com/opsintel/intelbot/internal/lark"
	"github.com/opsintel/intelbot/internal/providers"
)

type fakeSink struct {
	mu      sync.Mutex
	replies []string
	err     error
}

func (f *fakeSink) SendText(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	return f.err
}

func (f *fakeSink) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.replies...)
}

type fakeImages struct{}

func (fakeImages) DownloadMessageResource(context.Context, string, string, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []providers.ChatRequest
	reply    string
	err      error
}

func (f *fakeProvider) Chat(_ context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &providers.ChatResponse{Content: f.reply}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestBot(sink *fakeSink, provider *fakeProvider, lookup *fakeLookup) *Bot {
	b := New(config.Default(), sink, fakeImages{}, provider, lookup, discardLogger())
	b.classifier = NewClassifier(testBotID, time.Minute)
	return b
}

func TestStartFailsWithoutIdentity(t *testing.T) {
	b := New(config.Default(), &fakeSink{}, fakeImages{}, &fakeProvider{}, &fakeLookup{}, discardLogger())
	err := b.Start(t.Context(), func(context.Context) (*lark.BotInfo, error) {
		return nil, errors.New("401 app not found")
	})
	if err == nil {
		t.Fatal("expected startup to fail without resolved identity")
	}
}

func TestProcessPingSkipsMemory(t *testing.T) {
	sink := &fakeSink{}
	provider := &fakeProvider{}
	b := newTestBot(sink, provider, &fakeLookup{})

	ev := validEvent("om_ping")
	ev.Text = "/ping"
	b.process(t.Context(), ev)

	got := sink.all()
	if len(got) != 1 || got[0] != "Pong! 🏓" {
		t.Errorf("replies = %q", got)
	}
	if b.memory.Len() != 0 {
		t.Error("command reply must not touch conversation memory")
	}
	if provider.calls() != 0 {
		t.Error("command reply must not call the provider")
	}
}

func TestProcessUnmentionedGroupMessageHasNoSideEffects(t *testing.T) {
	sink := &fakeSink{}
	provider := &fakeProvider{}
	lookup := &fakeLookup{}
	b := newTestBot(sink, provider, lookup)

	ev := validEvent("om_group")
	ev.ChatType = bus.ChatGroup
	ev.Text = "hello"
	b.process(t.Context(), ev)

	if got := sink.all(); len(got) != 0 {
		t.Errorf("replies = %q, want none", got)
	}
	if provider.calls() != 0 || len(lookup.fetchCalls) != 0 || len(lookup.searchCalls) != 0 {
		t.Error("dropped event must not reach collaborators")
	}
	if b.memory.Len() != 0 {
		t.Error("dropped event must not touch conversation memory")
	}
}

func TestProcessMentionOnlyGreets(t *testing.T) {
	sink := &fakeSink{}
	b := newTestBot(sink, &fakeProvider{}, &fakeLookup{})

	ev := validEvent("om_greet")
	ev.ChatType = bus.ChatGroup
	ev.Text = "@_user_1 h"
	ev.Mentions = []bus.Mention{{Key: "@_user_1", TargetID: testBotID}}
	b.process(t.Context(), ev)

	got := sink.all()
	if len(got) != 1 || got[0] != greetingReply {
		t.Errorf("replies = %q, want canned greeting", got)
	}
}

func TestProcessConversationRecordsBothTurns(t *testing.T) {
	sink := &fakeSink{}
	provider := &fakeProvider{reply: "Zig is a systems language."}
	b := newTestBot(sink, provider, &fakeLookup{})

	ev := validEvent("om_chat")
	ev.Text = "tell me about zig"
	b.process(t.Context(), ev)

	got := sink.all()
	if len(got) != 1 || got[0] != "Zig is a systems language." {
		t.Errorf("replies = %q", got)
	}
	history := b.memory.GetHistory(ev.ChatID)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want user + assistant", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Errorf("roles = %s, %s", history[0].Role, history[1].Role)
	}

	// The request carries system prompt plus the new user message.
	req := provider.requests[0]
	if req.Messages[0].Role != "system" {
		t.Errorf("first message role = %s, want system", req.Messages[0].Role)
	}
	if last := req.Messages[len(req.Messages)-1]; last.Content != "tell me about zig" {
		t.Errorf("last message = %q", last.Content)
	}
}

func TestProcessHistoryFeedsNextCall(t *testing.T) {
	sink := &fakeSink{}
	provider := &fakeProvider{reply: "ok"}
	b := newTestBot(sink, provider, &fakeLookup{})

	first := validEvent("om_1")
	first.Text = "remember the number 7"
	b.process(t.Context(), first)

	second := validEvent("om_2")
	second.Text = "what number did I say?"
	b.process(t.Context(), second)

	req := provider.requests[1]
	// system + two prior turns + new question
	if len(req.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(req.Messages))
	}
	if req.Messages[1].Content != "remember the number 7" {
		t.Errorf("history message = %q", req.Messages[1].Content)
	}
}

func TestProcessTransientProviderErrorApologizes(t *testing.T) {
	sink := &fakeSink{}
	provider := &fakeProvider{err: errors.New("529 overloaded")}
	b := newTestBot(sink, provider, &fakeLookup{})

	ev := validEvent("om_err")
	ev.Text = "tell me about zig"
	b.process(t.Context(), ev)

	got := sink.all()
	if len(got) != 1 || got[0] != busyReply {
		t.Errorf("replies = %q, want busy apology", got)
	}
	if b.memory.Len() != 0 {
		t.Error("failed generation must not record turns")
	}
}

func TestProcessReplyFailureIsTerminal(t *testing.T) {
	sink := &fakeSink{err: errors.New("send: 502")}
	provider := &fakeProvider{reply: "hi there"}
	b := newTestBot(sink, provider, &fakeLookup{})

	ev := validEvent("om_replyfail")
	ev.Text = "tell me about zig"
	// Must not panic or retry; the failure is logged and absorbed.
	b.process(t.Context(), ev)

	if got := sink.all(); len(got) != 1 {
		t.Errorf("send attempts = %d, want exactly 1", len(got))
	}
}

func TestHandleEventIgnoresOtherEventTypes(t *testing.T) {
	b := newTestBot(&fakeSink{}, &fakeProvider{}, &fakeLookup{})
	payload := []byte(`{"header":{"event_type":"im.chat.updated_v1"},"event":{}}`)
	if err := b.HandleEvent(t.Context(), payload); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if b.dispatcher.queue.Len() != 0 {
		t.Error("non-message event must not be enqueued")
	}
}

func TestToInboundEventText(t *testing.T) {
	event := &lark.MessageEvent{}
	event.Header.EventType = "im.message.receive_v1"
	event.Event.Sender.SenderID.OpenID = "ou_user"
	event.Event.Message = lark.EventMessage{
		MessageID:   "om_1",
		ChatID:      "oc_1",
		ChatType:    "p2p",
		MessageType: "text",
		CreateTime:  "1700000000000",
		Content:     `{"text":"hello"}`,
	}

	ev, ok := toInboundEvent(event)
	if !ok {
		t.Fatal("expected conversion to succeed")
	}
	if ev.ChatType != bus.ChatDirect || ev.Kind != bus.KindText || ev.Text != "hello" {
		t.Errorf("event = %+v", ev)
	}
	if ev.CreateTime.UnixMilli() != 1700000000000 {
		t.Errorf("create time = %v", ev.CreateTime)
	}
}

func TestToInboundEventUnknownTypeRejected(t *testing.T) {
	event := &lark.MessageEvent{}
	event.Event.Message = lark.EventMessage{
		MessageID: "om_1", ChatID: "oc_1", MessageType: "sticker", Content: "{}",
	}
	if _, ok := toInboundEvent(event); ok {
		t.Error("sticker events should be rejected at ingress")
	}
}
