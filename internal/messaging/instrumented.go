package messaging

import (
	"context"
	"time"

	"github.com/BTreeMap/GymBro/internal/metrics"
	"github.com/BTreeMap/GymBro/internal/models"
)

// InstrumentedService records Prometheus metrics around another Service.
type InstrumentedService struct {
	Service
}

// Instrument wraps svc with send metrics.
func Instrument(svc Service) *InstrumentedService {
	return &InstrumentedService{Service: svc}
}

func observe(kind string, start time.Time, err error) error {
	metrics.SendDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	metrics.OutboundMessages.WithLabelValues(kind, metrics.Result(err)).Inc()
	return err
}

func (s *InstrumentedService) SendText(ctx context.Context, to, body, replyTo string) error {
	start := time.Now()
	return observe("text", start, s.Service.SendText(ctx, to, body, replyTo))
}

func (s *InstrumentedService) SendButtons(ctx context.Context, to, body string, buttons []models.Button) error {
	start := time.Now()
	return observe("buttons", start, s.Service.SendButtons(ctx, to, body, buttons))
}

func (s *InstrumentedService) SendMedia(ctx context.Context, to string, media models.Media) error {
	start := time.Now()
	return observe("media", start, s.Service.SendMedia(ctx, to, media))
}

func (s *InstrumentedService) MarkRead(ctx context.Context, messageID string) error {
	start := time.Now()
	return observe("read", start, s.Service.MarkRead(ctx, messageID))
}

// Resolve forwards to the wrapped service when it renders buttons as text.
func (s *InstrumentedService) Resolve(ev models.InboundEvent) models.InboundEvent {
	if r, ok := s.Service.(ButtonResolver); ok {
		return r.Resolve(ev)
	}
	return ev
}

// Inbound forwards to the wrapped service when it has its own inbound connection.
// It returns nil otherwise.
func (s *InstrumentedService) Inbound() <-chan models.InboundEvent {
	if src, ok := s.Service.(InboundSource); ok {
		return src.Inbound()
	}
	return nil
}
