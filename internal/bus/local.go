package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Local is the in-process Registry: named groups of live members guarded by a
// mutex. Membership changes only on connect/disconnect of a single
// connection; a member added mid-publish may or may not see that event.
type Local struct {
	log *zap.Logger

	mu     sync.RWMutex
	groups map[string]map[string]Member
}

// NewLocal constructs an empty in-process registry.
func NewLocal(log *zap.Logger) *Local {
	return &Local{log: log, groups: make(map[string]map[string]Member)}
}

// Join adds m to group. Idempotent.
func (l *Local) Join(_ context.Context, group string, m Member) {
	l.mu.Lock()
	defer l.mu.Unlock()
	members, ok := l.groups[group]
	if !ok {
		members = make(map[string]Member)
		l.groups[group] = members
	}
	members[m.ID()] = m
}

// Leave removes m from group. No-op if not a member.
func (l *Local) Leave(_ context.Context, group string, m Member) {
	l.mu.Lock()
	defer l.mu.Unlock()
	members, ok := l.groups[group]
	if !ok {
		return
	}
	delete(members, m.ID())
	if len(members) == 0 {
		delete(l.groups, group)
	}
}

// Publish delivers event to every current member of group. Each delivery is
// independent: a dead member is logged and skipped, the rest still receive
// the event.
func (l *Local) Publish(_ context.Context, group string, event []byte) {
	l.mu.RLock()
	members := make([]Member, 0, len(l.groups[group]))
	for _, m := range l.groups[group] {
		members = append(members, m)
	}
	l.mu.RUnlock()

	for _, m := range members {
		if err := m.Deliver(event); err != nil {
			l.log.Warn("fan-out delivery failed",
				zap.String("group", group),
				zap.String("member", m.ID()),
				zap.Error(err),
			)
		}
	}
}

// MemberCount returns the current size of group.
func (l *Local) MemberCount(group string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.groups[group])
}
