package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/complaint-intake-api/internal/dto"
)

// ComplaintEvents announces changes to the complaints table to other services.
type ComplaintEvents interface {
	Recorded(ctx context.Context, complaint dto.ComplaintResponse)
	Purged(ctx context.Context, count int)
}

// NopComplaintEvents discards every event.
type NopComplaintEvents struct{}

// Recorded implements ComplaintEvents.
func (NopComplaintEvents) Recorded(context.Context, dto.ComplaintResponse) {}

// Purged implements ComplaintEvents.
func (NopComplaintEvents) Purged(context.Context, int) {}

type complaintEvent struct {
	Type      string                 `json:"type"`
	Complaint *dto.ComplaintResponse `json:"complaint,omitempty"`
	Count     int                    `json:"count,omitempty"`
	SentAt    time.Time              `json:"sent_at"`
}

type natsComplaintEvents struct {
	conn        *nats.Conn
	subjectBase string
	logger      zerolog.Logger
}

// NewNATSComplaintEvents publishes complaint events on <base>.recorded and <base>.purged.
// A nil connection yields a publisher that drops events.
func NewNATSComplaintEvents(conn *nats.Conn, subjectBase string, logger zerolog.Logger) ComplaintEvents {
	if conn == nil {
		return NopComplaintEvents{}
	}
	if subjectBase == "" {
		subjectBase = "complaints"
	}
	return &natsComplaintEvents{
		conn:        conn,
		subjectBase: subjectBase,
		logger:      logger.With().Str("component", "complaint_events").Logger(),
	}
}

func (e *natsComplaintEvents) Recorded(_ context.Context, complaint dto.ComplaintResponse) {
	e.publish(e.subjectBase+".recorded", complaintEvent{Type: "recorded", Complaint: &complaint, SentAt: time.Now().UTC()})
}

func (e *natsComplaintEvents) Purged(_ context.Context, count int) {
	e.publish(e.subjectBase+".purged", complaintEvent{Type: "purged", Count: count, SentAt: time.Now().UTC()})
}

func (e *natsComplaintEvents) publish(subject string, event complaintEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.Error().Err(err).Str("subject", subject).Msg("failed to encode complaint event")
		return
	}
	if err := e.conn.Publish(subject, payload); err != nil {
		e.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish complaint event")
	}
}
