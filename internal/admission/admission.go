// Package admission implements the validation pipeline that gates whether a
// signed intent is accepted into the system of record. Checks run in a fixed
// order, cheapest first, and short-circuit on the first failure: shape,
// signature, temporal validity, value bounds, replay. Nothing is persisted
// unless every check passes.
package admission

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/predifi/intent-gateway/internal/domain"
)

// Signal bus channels carrying admission events.
const (
	ChannelOrders      = "ch:admission:order"
	ChannelCommitments = "ch:admission:commitment"
)

// Alerter delivers operator notifications for admission events. Satisfied by
// notify.Notifier.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Options carries the optional collaborators of a pipeline. Zero values
// disable the corresponding side effect; Clock and Logger get defaults.
type Options struct {
	// Nonces is an advisory replay fast path. The store's uniqueness
	// constraint remains the authoritative guard.
	Nonces domain.NonceCache
	Audit  domain.AuditStore
	Bus    domain.SignalBus
	Alerts Alerter
	Clock  domain.Clock
	Logger *slog.Logger
}

func (o *Options) fillDefaults() {
	if o.Clock == nil {
		o.Clock = domain.SystemClock{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// sideEffects runs the post-admission bookkeeping shared by both pipelines:
// nonce cache mark, audit log, signal bus publish, operator alert. All are
// best effort; the intent is already durably admitted and a side-effect
// failure must not turn a success into a client-visible error.
func (o *Options) sideEffects(ctx context.Context, channel, auditEvent string, ev domain.AdmissionEvent) {
	if o.Nonces != nil {
		if err := o.Nonces.Mark(ctx, ev.Kind, ev.Principal, ev.Nonce); err != nil {
			o.Logger.WarnContext(ctx, "nonce cache mark failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if o.Audit != nil {
		if err := o.Audit.Log(ctx, auditEvent, map[string]any{
			"record_id": ev.RecordID,
			"principal": ev.Principal,
			"nonce":     ev.Nonce,
		}); err != nil {
			o.Logger.WarnContext(ctx, "audit log failed",
				slog.String("event", auditEvent),
				slog.String("error", err.Error()),
			)
		}
	}

	if o.Bus != nil {
		payload, err := json.Marshal(ev)
		if err == nil {
			err = o.Bus.Publish(ctx, channel, payload)
		}
		if err != nil {
			o.Logger.WarnContext(ctx, "admission event publish failed",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
		}
	}
}

// flagMismatch records a signer-mismatch rejection. These are the
// security-relevant rejections: a syntactically valid signature claiming to
// be someone it is not.
func (o *Options) flagMismatch(ctx context.Context, kind domain.IntentKind, principal, nonce, recovered string) {
	o.Logger.WarnContext(ctx, "signer mismatch",
		slog.String("kind", string(kind)),
		slog.String("claimed", principal),
		slog.String("recovered", recovered),
	)

	if o.Audit != nil {
		if err := o.Audit.Log(ctx, string(kind)+".signer_mismatch", map[string]any{
			"claimed":   principal,
			"recovered": recovered,
			"nonce":     nonce,
		}); err != nil {
			o.Logger.WarnContext(ctx, "audit log failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if o.Alerts != nil {
		_ = o.Alerts.Notify(ctx, "signer_mismatch",
			"Signer mismatch rejected",
			"claimed "+principal+", recovered "+recovered)
	}
}

// nowUnix returns the verification time in unix seconds.
func (o *Options) nowUnix() int64 {
	return o.Clock.Now().Unix()
}

// createdAt returns the persistence timestamp.
func (o *Options) createdAt() time.Time {
	return o.Clock.Now().UTC()
}
