package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/forumhq/comms/internal/bus"
	"github.com/forumhq/comms/internal/model"
	"github.com/forumhq/comms/internal/service"
)

type fakeNotifications struct {
	mu      sync.Mutex
	created []model.Notification
	failFor map[string]error
}

func (f *fakeNotifications) Create(_ context.Context, recipient model.Identity, msg model.Message) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[recipient.ID]; ok {
		return nil, err
	}
	n := model.Notification{
		ID:        uuid.Must(uuid.NewV4()),
		Recipient: recipient,
		Message:   msg,
	}
	f.created = append(f.created, n)
	return &n, nil
}

func (f *fakeNotifications) MarkRead(context.Context, uuid.UUID) error { return nil }

func (f *fakeNotifications) ListForRecipient(context.Context, string) ([]model.Notification, error) {
	return nil, nil
}

func (f *fakeNotifications) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.created))
	for _, n := range f.created {
		out = append(out, n.Recipient.ID)
	}
	return out
}

var _ service.NotificationService = (*fakeNotifications)(nil)

type fakeRegistry struct {
	mu        sync.Mutex
	published map[string][][]byte
}

var _ bus.Registry = (*fakeRegistry)(nil)

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{published: make(map[string][][]byte)}
}

func (f *fakeRegistry) Join(context.Context, string, bus.Member)  {}
func (f *fakeRegistry) Leave(context.Context, string, bus.Member) {}

func (f *fakeRegistry) Publish(_ context.Context, group string, event []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[group] = append(f.published[group], append([]byte(nil), event...))
}

func (f *fakeRegistry) events(group string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[group]
}

func testEvent(convID uuid.UUID) model.MessageEvent {
	return model.MessageEvent{
		ConversationID: convID,
		Participants: []model.Identity{
			{ID: "1", Username: "alice"},
			{ID: "2", Username: "bob"},
			{ID: "3", Username: "carol"},
		},
		Message: model.Message{
			Sender:    model.Identity{ID: "1", Username: "alice"},
			Body:      "Hello",
			CreatedAt: time.Now(),
		},
	}
}

func TestPipeline_FanOut_SkipsSender(t *testing.T) {
	t.Parallel()
	notifs := &fakeNotifications{}
	reg := newFakeRegistry()
	p := NewPipeline(zap.NewNop(), notifs, reg, nil)

	convID := uuid.Must(uuid.NewV4())
	p.handle(context.Background(), testEvent(convID))

	got := notifs.recipients()
	if len(got) != 2 {
		t.Fatalf("want 2 notifications, got %d (%v)", len(got), got)
	}
	for _, id := range got {
		if id == "1" {
			t.Fatalf("sender must not be notified")
		}
	}

	if len(reg.events("identity:2")) != 1 || len(reg.events("identity:3")) != 1 {
		t.Fatalf("each recipient's personal group must get one push")
	}
	if len(reg.events("identity:1")) != 0 {
		t.Fatalf("sender's personal group must stay silent")
	}
}

func TestPipeline_BroadcastsMessageToConversationGroup(t *testing.T) {
	t.Parallel()
	reg := newFakeRegistry()
	p := NewPipeline(zap.NewNop(), &fakeNotifications{}, reg, nil)

	convID := uuid.Must(uuid.NewV4())
	p.handle(context.Background(), testEvent(convID))

	events := reg.events("conversation:" + convID.String())
	if len(events) != 1 {
		t.Fatalf("want one conversation broadcast, got %d", len(events))
	}
	var payload struct {
		Message struct {
			Sender  model.Identity `json:"sender"`
			Message string         `json:"message"`
		} `json:"message"`
	}
	if err := json.Unmarshal(events[0], &payload); err != nil {
		t.Fatalf("unmarshal broadcast: %v", err)
	}
	if payload.Message.Message != "Hello" || payload.Message.Sender.ID != "1" {
		t.Fatalf("bad broadcast payload: %s", events[0])
	}
}

func TestPipeline_RecipientFailureIsIsolated(t *testing.T) {
	t.Parallel()
	notifs := &fakeNotifications{failFor: map[string]error{"2": errors.New("insert failed")}}
	reg := newFakeRegistry()
	p := NewPipeline(zap.NewNop(), notifs, reg, nil)

	p.handle(context.Background(), testEvent(uuid.Must(uuid.NewV4())))

	got := notifs.recipients()
	if len(got) != 1 || got[0] != "3" {
		t.Fatalf("the unaffected recipient must still be notified, got %v", got)
	}
	if len(reg.events("identity:2")) != 0 {
		t.Fatalf("failed recipient must not get a push")
	}
	if len(reg.events("identity:3")) != 1 {
		t.Fatalf("unaffected recipient must get a push")
	}
}

func TestPipeline_ProfileUpdated_NotifiesFollowers(t *testing.T) {
	t.Parallel()
	notifs := &fakeNotifications{}
	reg := newFakeRegistry()
	p := NewPipeline(zap.NewNop(), notifs, reg, nil)

	actor := model.Identity{ID: "s1", Username: "rocketco"}
	followers := []model.Identity{{ID: "f1"}, {ID: "f2"}, actor}
	p.ProfileUpdated(context.Background(), actor, followers, "Startup 'rocketco' has been updated.")

	got := notifs.recipients()
	if len(got) != 2 {
		t.Fatalf("want 2 follower notifications, got %v", got)
	}
	if len(reg.events("identity:f1")) != 1 || len(reg.events("identity:f2")) != 1 {
		t.Fatalf("follower groups must each get one push")
	}
}

func TestPipeline_RunConsumesQueuedEvents(t *testing.T) {
	t.Parallel()
	notifs := &fakeNotifications{}
	reg := newFakeRegistry()
	p := NewPipeline(zap.NewNop(), notifs, reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.MessageAppended(testEvent(uuid.Must(uuid.NewV4())))

	deadline := time.After(2 * time.Second)
	for len(notifs.recipients()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("pipeline did not process queued event")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
