// Copyright (c) 2023 BVK Chaitanya

// Package notify fans order line results out to messaging services and
// record streams.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bvk/pairbot/scheduler"
	"github.com/visvasity/topic"
)

// Sender delivers short text messages, e.g. telegram or pushover.
type Sender interface {
	SendMessage(ctx context.Context, at time.Time, msg string) error
}

// Publisher delivers structured records, e.g. a kafka topic.
type Publisher interface {
	Publish(ctx context.Context, key string, v any) error
}

type Notifier struct {
	senders    []Sender
	publishers []Publisher
}

func (n *Notifier) AddSender(s Sender) {
	n.senders = append(n.senders, s)
}

func (n *Notifier) AddPublisher(p Publisher) {
	n.publishers = append(n.publishers, p)
}

func (n *Notifier) IsEmpty() bool {
	return len(n.senders) == 0 && len(n.publishers) == 0
}

// NotifyResult delivers one line result to every destination. Delivery
// failures are logged and do not stop other destinations.
func (n *Notifier) NotifyResult(ctx context.Context, r *scheduler.Result) {
	msg := fmt.Sprintf("%s %s", r.Pair, r)
	for _, s := range n.senders {
		if err := s.SendMessage(ctx, r.FinishedAt, msg); err != nil {
			slog.Warn("could not send line result notification (ignored)", "line", r.Index, "err", err)
		}
	}
	for _, p := range n.publishers {
		if err := p.Publish(ctx, r.Pair, r); err != nil {
			slog.Warn("could not publish line result (ignored)", "line", r.Index, "err", err)
		}
	}
}

// NotifySummary delivers the final run summary to every text destination.
func (n *Notifier) NotifySummary(ctx context.Context, s *scheduler.Summary) {
	msg := fmt.Sprintf("run finished: %s", s)
	for _, sender := range n.senders {
		if err := sender.SendMessage(ctx, s.FinishedAt, msg); err != nil {
			slog.Warn("could not send summary notification (ignored)", "err", err)
		}
	}
}

// Forward delivers every result from the receiver until the context is
// canceled or the receiver is closed.
func (n *Notifier) Forward(ctx context.Context, receiver *topic.Receiver[*scheduler.Result]) error {
	stopf := context.AfterFunc(ctx, receiver.Close)
	defer stopf()

	for {
		r, err := receiver.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			return err
		}
		n.NotifyResult(ctx, r)
	}
}
