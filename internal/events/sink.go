package events

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Sink receives committed events. Delivery is fire-and-forget: a sink must
// not report failure back into accounting.
type Sink interface {
	Record(Envelope)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Record(Envelope) {}

// MultiSink fans an event out to each sink in order.
type MultiSink []Sink

func (m MultiSink) Record(env Envelope) {
	for _, s := range m {
		if s != nil {
			s.Record(env)
		}
	}
}

// LogSink writes events to a zap logger.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Record(env Envelope) {
	if s.Logger == nil {
		return
	}
	data, err := json.Marshal(env.Data)
	if err != nil {
		s.Logger.Warn("marshal event", zap.String("type", env.Type), zap.Error(err))
		return
	}
	s.Logger.Info("event",
		zap.String("id", env.ID),
		zap.String("pool", env.PoolID),
		zap.String("type", env.Type),
		zap.ByteString("data", data),
	)
}

// Recorder keeps events in memory for tests. It is not safe for concurrent
// use.
type Recorder struct {
	Events []Envelope
}

func (r *Recorder) Record(env Envelope) {
	r.Events = append(r.Events, env)
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []string {
	out := make([]string, 0, len(r.Events))
	for _, env := range r.Events {
		out = append(out, env.Type)
	}
	return out
}
