// Package notify derives and delivers notification side effects from message
// and profile events.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/forumhq/comms/internal/bus"
	"github.com/forumhq/comms/internal/model"
	"github.com/forumhq/comms/internal/service"
)

const defaultBuffer = 256

// messageBroadcast is the live payload for a newly appended message.
type messageBroadcast struct {
	Message model.Message `json:"message"`
}

// notificationBroadcast is the live payload for a new notification.
type notificationBroadcast struct {
	Message string `json:"message"`
}

// Pipeline consumes message events after they are durably stored: it fans the
// message out to the conversation's group, then writes one notification per
// recipient (everyone but the sender) and pushes it through the recipient's
// personal group. Every per-recipient side effect is isolated: a failure is
// logged and the remaining recipients still get theirs.
type Pipeline struct {
	log           *zap.Logger
	notifications service.NotificationService
	registry      bus.Registry
	email         EmailSender

	events chan model.MessageEvent
}

var _ service.MessageSink = (*Pipeline)(nil)

// NewPipeline constructs the pipeline. email may be nil to disable the email
// side channel.
func NewPipeline(log *zap.Logger, notifications service.NotificationService, registry bus.Registry, email EmailSender) *Pipeline {
	return &Pipeline{
		log:           log,
		notifications: notifications,
		registry:      registry,
		email:         email,
		events:        make(chan model.MessageEvent, defaultBuffer),
	}
}

// MessageAppended queues one event for processing. The message is already
// committed; nothing the pipeline does can roll it back.
func (p *Pipeline) MessageAppended(ev model.MessageEvent) {
	p.events <- ev
}

// Run processes events until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			p.handle(ctx, ev)
		}
	}
}

// handle broadcasts the message to its conversation group and triggers one
// notification per recipient, in parallel.
func (p *Pipeline) handle(ctx context.Context, ev model.MessageEvent) {
	if payload, err := json.Marshal(messageBroadcast{Message: ev.Message}); err != nil {
		p.log.Error("marshal message broadcast", zap.Error(err))
	} else {
		p.registry.Publish(ctx, bus.ConversationGroup(ev.ConversationID.String()), payload)
	}

	var wg sync.WaitGroup
	for _, recipient := range ev.Recipients() {
		wg.Add(1)
		go func(r model.Identity) {
			defer wg.Done()
			if err := p.Trigger(ctx, r, ev.Message); err != nil {
				p.log.Warn("notification trigger failed",
					zap.String("recipient", r.ID),
					zap.String("conversation", ev.ConversationID.String()),
					zap.Error(err),
				)
			}
		}(recipient)
	}
	wg.Wait()
}

// Trigger is the reusable create-then-publish primitive: it stores one
// notification for the recipient and pushes a summary through the recipient's
// personal group. Profile-change triggers reuse it with a synthetic snapshot.
func (p *Pipeline) Trigger(ctx context.Context, recipient model.Identity, snapshot model.Message) error {
	if _, err := p.notifications.Create(ctx, recipient, snapshot); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	summary := fmt.Sprintf("New message from %s", snapshot.Sender.Username)
	payload, err := json.Marshal(notificationBroadcast{Message: summary})
	if err != nil {
		return fmt.Errorf("marshal notification broadcast: %w", err)
	}
	p.registry.Publish(ctx, bus.IdentityGroup(recipient.ID), payload)

	if p.email != nil {
		go func() {
			if err := p.email.Send(context.WithoutCancel(ctx), recipient, summary, snapshot.Body); err != nil {
				p.log.Warn("email send failed", zap.String("recipient", recipient.ID), zap.Error(err))
			}
		}()
	}
	return nil
}

// ProfileUpdated notifies every follower of a changed profile. Each follower
// is independent; one failure does not abort the rest.
func (p *Pipeline) ProfileUpdated(ctx context.Context, actor model.Identity, followers []model.Identity, summary string) {
	snapshot := model.Message{Sender: actor, Body: summary}
	for _, f := range followers {
		if f.ID == actor.ID {
			continue
		}
		if err := p.Trigger(ctx, f, snapshot); err != nil {
			p.log.Warn("profile notification failed",
				zap.String("follower", f.ID),
				zap.String("actor", actor.ID),
				zap.Error(err),
			)
		}
	}
}
