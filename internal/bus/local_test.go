package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type fakeMember struct {
	id string

	mu     sync.Mutex
	events [][]byte
	fail   error
}

func (f *fakeMember) ID() string { return f.id }

func (f *fakeMember) Deliver(event []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.events = append(f.events, append([]byte(nil), event...))
	return nil
}

func (f *fakeMember) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestLocal_PublishScope(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewLocal(zap.NewNop())

	a := &fakeMember{id: "a"}
	b := &fakeMember{id: "b"}
	outsider := &fakeMember{id: "c"}

	l.Join(ctx, "conversation:1", a)
	l.Join(ctx, "conversation:1", b)
	l.Join(ctx, "conversation:2", outsider)

	l.Publish(ctx, "conversation:1", []byte("hi"))

	if a.received() != 1 || b.received() != 1 {
		t.Fatalf("members of the group must each receive the event: a=%d b=%d", a.received(), b.received())
	}
	if outsider.received() != 0 {
		t.Fatalf("non-member received the event")
	}
}

func TestLocal_JoinIdempotent(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(zap.NewNop())
	m := &fakeMember{id: "a"}

	l.Join(ctx, "g", m)
	l.Join(ctx, "g", m)
	if got := l.MemberCount("g"); got != 1 {
		t.Fatalf("double join: want 1 member, got %d", got)
	}

	l.Publish(ctx, "g", []byte("x"))
	if m.received() != 1 {
		t.Fatalf("double join must not duplicate delivery: got %d", m.received())
	}
}

func TestLocal_LeaveUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(zap.NewNop())
	l.Leave(ctx, "missing", &fakeMember{id: "a"})
}

func TestLocal_DeadMemberDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(zap.NewNop())

	dead := &fakeMember{id: "dead", fail: errors.New("connection closed")}
	alive := &fakeMember{id: "alive"}
	l.Join(ctx, "g", dead)
	l.Join(ctx, "g", alive)

	l.Publish(ctx, "g", []byte("evt"))

	if alive.received() != 1 {
		t.Fatalf("delivery to live member suppressed by dead member")
	}
}

func TestLocal_NoDeliveryAfterLeave(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(zap.NewNop())
	m := &fakeMember{id: "a"}

	l.Join(ctx, "g", m)
	l.Leave(ctx, "g", m)
	l.Publish(ctx, "g", []byte("evt"))

	if m.received() != 0 {
		t.Fatalf("member received event after leaving")
	}
}

func TestLocal_ConcurrentJoinLeavePublish(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := &fakeMember{id: fmt.Sprintf("m%d", i)}
			l.Join(ctx, "g", m)
			l.Publish(ctx, "g", []byte("evt"))
			l.Leave(ctx, "g", m)
		}(i)
	}
	wg.Wait()

	if got := l.MemberCount("g"); got != 0 {
		t.Fatalf("group not empty after all members left: %d", got)
	}
}
