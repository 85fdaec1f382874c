package metrics

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ErrNilMeter = errors.New("nil meter")

const (
	RefreshOK        = "ok"
	RefreshExpired   = "expired"
	RefreshAnonymous = "anonymous"

	IntrusionDeviceCookie  = "device_cookie"
	IntrusionSessionCookie = "session_cookie"
	IntrusionSessionID     = "session_id"
)

// Recorder counts session lifecycle and transport events. A nil Recorder records nothing.
type Recorder struct {
	logins      metric.Int64Counter
	logouts     metric.Int64Counter
	refreshes   metric.Int64Counter
	intrusions  metric.Int64Counter
	transitions metric.Int64Counter
}

// NewRecorder creates the counters on meter, or on the global provider when meter is nil.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		meter = otel.Meter("webstack")
	}
	r := &Recorder{}
	defs := []struct {
		name string
		help string
		dst  *metric.Int64Counter
	}{
		{"session.login", "Sessions created by login.", &r.logins},
		{"session.logout", "Sessions terminated by logout.", &r.logouts},
		{"session.refresh", "Access token refresh attempts by result.", &r.refreshes},
		{"auth.intrusion", "Rejected cookies and identifiers by kind.", &r.intrusions},
		{"db.state_transition", "Database connection state transitions by event.", &r.transitions},
	}
	for _, d := range defs {
		c, err := meter.Int64Counter(d.name, metric.WithDescription(d.help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", d.name, err)
		}
		*d.dst = c
	}
	return r, nil
}

func (r *Recorder) Login(ctx context.Context) {
	if r == nil {
		return
	}
	r.logins.Add(ctx, 1)
}

func (r *Recorder) Logout(ctx context.Context) {
	if r == nil {
		return
	}
	r.logouts.Add(ctx, 1)
}

func (r *Recorder) Refresh(ctx context.Context, result string) {
	if r == nil {
		return
	}
	r.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (r *Recorder) Intrusion(ctx context.Context, kind string) {
	if r == nil {
		return
	}
	r.intrusions.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (r *Recorder) StateTransition(ctx context.Context, node, event string) {
	if r == nil {
		return
	}
	r.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("node", node), attribute.String("event", event)))
}
