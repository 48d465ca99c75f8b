package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"session-control-plane/internal/telemetry"
)

// NewEventEmitter returns an EventEmitter that sends security events as OTel
// log records via the given LoggerProvider. If provider is nil, returns a
// no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("scp.auth")}
}

// recordEmitter is the subset of otellog.Logger used by the adapter.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitterWithLogger wires a specific record emitter; used in tests.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.SecurityEvent) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the security event to an OTel log record and emits it.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.SecurityEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(otellog.SeverityWarn)
	rec.SetBody(otellog.StringValue(event.Type))
	if event.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", event.UserID))
	}
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", event.SessionID))
	}
	if event.TokenID != "" {
		rec.AddAttributes(otellog.String("token_id", event.TokenID))
	}
	if event.Count > 0 {
		rec.AddAttributes(otellog.Int64("count", event.Count))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
