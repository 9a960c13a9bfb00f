package messagelog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/beingharisali/martchat/internal/bus"
	"github.com/beingharisali/martchat/internal/model"
)

// fakeMessageAPI serves canned histories, with optional per-chat delay.
type fakeMessageAPI struct {
	mu      sync.Mutex
	history map[string][]model.Message
	delay   map[string]time.Duration
	listErr error
	sendErr error
	sent    []string
	nextID  int
}

func newFakeMessageAPI() *fakeMessageAPI {
	return &fakeMessageAPI{
		history: make(map[string][]model.Message),
		delay:   make(map[string]time.Duration),
	}
}

func (f *fakeMessageAPI) ListMessages(_ context.Context, chatID string) ([]model.Message, error) {
	f.mu.Lock()
	d := f.delay[chatID]
	err := f.listErr
	msgs := append([]model.Message(nil), f.history[chatID]...)
	f.mu.Unlock()

	if d > 0 {
		time.Sleep(d)
	}
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (f *fakeMessageAPI) SendMessage(_ context.Context, chatID, content string, att *model.Attachment) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, content)
	msg := model.Message{
		ID:        "srv-" + content,
		Content:   content,
		Chat:      &model.Chat{ID: chatID},
		CreatedAt: time.Now(),
	}
	return &msg, nil
}

func (f *fakeMessageAPI) DeleteMessage(_ context.Context, messageID string) error {
	return nil
}

// fakeBroadcaster records live relays.
type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []*model.Message
}

func (f *fakeBroadcaster) SendMessage(msg *model.Message) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func msgAt(id, chatID string, at time.Time) model.Message {
	return model.Message{ID: id, Content: id, Chat: &model.Chat{ID: chatID}, CreatedAt: at}
}

func newTestLog(api *fakeMessageAPI) (*Log, *fakeBroadcaster, *bus.Bus) {
	b := bus.New()
	caster := &fakeBroadcaster{}
	return New(api, caster, b, zap.NewNop()), caster, b
}

func TestLoadSortsByCreatedAt(t *testing.T) {
	api := newFakeMessageAPI()
	base := time.Now()
	api.history["c1"] = []model.Message{
		msgAt("m2", "c1", base.Add(2*time.Second)),
		msgAt("m1", "c1", base.Add(1*time.Second)),
		msgAt("m3", "c1", base.Add(3*time.Second)),
	}
	l, _, _ := newTestLog(api)

	l.SetTarget("c1")
	if err := l.Load(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	msgs := l.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if msgs[i].ID != want {
			t.Errorf("msgs[%d] = %s, want %s", i, msgs[i].ID, want)
		}
	}
}

func TestAppendDeduplicates(t *testing.T) {
	api := newFakeMessageAPI()
	l, _, _ := newTestLog(api)
	l.SetTarget("c1")

	m := msgAt("m1", "c1", time.Now())
	if !l.Append(m) {
		t.Fatal("first append should succeed")
	}
	// The live echo of a message already appended locally is a duplicate.
	if l.Append(m) {
		t.Error("duplicate append should be rejected")
	}
	if got := len(l.Messages()); got != 1 {
		t.Errorf("got %d messages, want 1", got)
	}
}

func TestAppendKeepsOrder(t *testing.T) {
	api := newFakeMessageAPI()
	l, _, _ := newTestLog(api)
	l.SetTarget("c1")

	base := time.Now()
	l.Append(msgAt("m1", "c1", base.Add(1*time.Second)))
	l.Append(msgAt("m3", "c1", base.Add(3*time.Second)))
	// Late arrival with an earlier timestamp lands in sorted position.
	l.Append(msgAt("m2", "c1", base.Add(2*time.Second)))

	msgs := l.Messages()
	for i, want := range []string{"m1", "m2", "m3"} {
		if msgs[i].ID != want {
			t.Errorf("msgs[%d] = %s, want %s", i, msgs[i].ID, want)
		}
	}
}

func TestAppendRejectsForeignChat(t *testing.T) {
	api := newFakeMessageAPI()
	l, _, _ := newTestLog(api)
	l.SetTarget("c1")

	if l.Append(msgAt("m1", "c2", time.Now())) {
		t.Error("message for another chat should be rejected")
	}
	if got := len(l.Messages()); got != 0 {
		t.Errorf("got %d messages, want 0", got)
	}
}

func TestAppendWithoutTarget(t *testing.T) {
	api := newFakeMessageAPI()
	l, _, _ := newTestLog(api)

	if l.Append(msgAt("m1", "c1", time.Now())) {
		t.Error("append with no open chat should be rejected")
	}
}

// TestSlowLoadDiscarded pins the selection-switch behavior: a fetch for a
// previously selected chat that completes late must not overwrite the
// current chat's log.
func TestSlowLoadDiscarded(t *testing.T) {
	api := newFakeMessageAPI()
	base := time.Now()
	api.history["slow"] = []model.Message{msgAt("s1", "slow", base)}
	api.history["fast"] = []model.Message{msgAt("f1", "fast", base)}
	api.delay["slow"] = 300 * time.Millisecond
	l, _, _ := newTestLog(api)

	l.SetTarget("slow")
	done := make(chan error, 1)
	go func() { done <- l.Load(context.Background(), "slow") }()

	// User switches chats before the slow fetch returns.
	time.Sleep(50 * time.Millisecond)
	l.SetTarget("fast")
	if err := l.Load(context.Background(), "fast"); err != nil {
		t.Fatal(err)
	}

	if err := <-done; err != nil {
		t.Fatal(err)
	}

	msgs := l.Messages()
	if len(msgs) != 1 || msgs[0].ID != "f1" {
		t.Errorf("messages = %v, want only f1 (slow result discarded)", msgs)
	}
	if l.ChatID() != "fast" {
		t.Errorf("target = %q, want fast", l.ChatID())
	}
}

func TestLoadFailureEmitsEvent(t *testing.T) {
	api := newFakeMessageAPI()
	api.listErr = errors.New("boom")
	l, _, b := newTestLog(api)

	failed, unsub := b.Subscribe(bus.MessageLoadFailed, 10)
	defer unsub()

	l.SetTarget("c1")
	if err := l.Load(context.Background(), "c1"); err == nil {
		t.Fatal("expected load error")
	}

	select {
	case <-failed:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for load-failed event")
	}
}

func TestSendValidation(t *testing.T) {
	api := newFakeMessageAPI()
	l, caster, _ := newTestLog(api)
	l.SetTarget("c1")

	var verr *model.ValidationError
	if _, err := l.Send(context.Background(), "   ", nil); !errors.As(err, &verr) {
		t.Errorf("whitespace-only send error = %v, want ValidationError", err)
	}
	if len(api.sent) != 0 {
		t.Error("validation failure must not reach the server")
	}
	if caster.count() != 0 {
		t.Error("validation failure must not broadcast")
	}

	l.Reset()
	if _, err := l.Send(context.Background(), "hello", nil); !errors.As(err, &verr) {
		t.Errorf("send without open chat error = %v, want ValidationError", err)
	}
}

func TestSendAppendsAndBroadcasts(t *testing.T) {
	api := newFakeMessageAPI()
	l, caster, _ := newTestLog(api)
	l.SetTarget("c1")

	msg, err := l.Send(context.Background(), "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "srv-hello" {
		t.Errorf("returned id = %q, want the server copy", msg.ID)
	}

	msgs := l.Messages()
	if len(msgs) != 1 || msgs[0].ID != "srv-hello" {
		t.Errorf("log = %v, want the confirmed message", msgs)
	}
	if caster.count() != 1 {
		t.Errorf("broadcasts = %d, want 1", caster.count())
	}

	// The socket echo of our own message must not duplicate it.
	if l.Append(*msg) {
		t.Error("echo append should be rejected as duplicate")
	}
	if got := len(l.Messages()); got != 1 {
		t.Errorf("got %d messages after echo, want 1", got)
	}
}

func TestSendFailureChangesNothing(t *testing.T) {
	api := newFakeMessageAPI()
	api.sendErr = errors.New("boom")
	l, caster, _ := newTestLog(api)
	l.SetTarget("c1")

	if _, err := l.Send(context.Background(), "hello", nil); err == nil {
		t.Fatal("expected send error")
	}
	if got := len(l.Messages()); got != 0 {
		t.Errorf("got %d messages after failed send, want 0", got)
	}
	if caster.count() != 0 {
		t.Error("failed send must not broadcast")
	}
}

func TestSendAttachmentOnly(t *testing.T) {
	api := newFakeMessageAPI()
	l, _, _ := newTestLog(api)
	l.SetTarget("c1")

	att := &model.Attachment{URL: "https://cdn/x.pdf", Name: "x.pdf"}
	if _, err := l.Send(context.Background(), "", att); err != nil {
		t.Fatalf("attachment-only send: %v", err)
	}
}

func TestDeleteRemovesLocally(t *testing.T) {
	api := newFakeMessageAPI()
	l, _, b := newTestLog(api)
	l.SetTarget("c1")
	l.Append(msgAt("m1", "c1", time.Now()))

	removed, unsub := b.Subscribe(bus.MessageRemoved, 10)
	defer unsub()

	if err := l.Delete(context.Background(), "m1"); err != nil {
		t.Fatal(err)
	}
	if got := len(l.Messages()); got != 0 {
		t.Errorf("got %d messages after delete, want 0", got)
	}

	select {
	case evt := <-removed:
		if evt.Payload != "m1" {
			t.Errorf("removed payload = %v, want m1", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for removed event")
	}
}

func TestReset(t *testing.T) {
	api := newFakeMessageAPI()
	l, _, _ := newTestLog(api)
	l.SetTarget("c1")
	l.Append(msgAt("m1", "c1", time.Now()))

	l.Reset()
	if l.ChatID() != "" {
		t.Errorf("target = %q after reset, want empty", l.ChatID())
	}
	if got := len(l.Messages()); got != 0 {
		t.Errorf("got %d messages after reset, want 0", got)
	}
}
