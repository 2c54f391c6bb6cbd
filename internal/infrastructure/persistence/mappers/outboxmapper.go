package mappers

import (
	"encoding/json"

	"gorm.io/datatypes"

	"chatdesk/internal/application/outbox"
	"chatdesk/internal/infrastructure/persistence/models"
)

func OutboxRecordToModel(r *outbox.Record) *models.OutboxEventModel {
	return &models.OutboxEventModel{
		ID:            r.ID,
		EnvelopeID:    r.Envelope.ID,
		RoutingKey:    r.RoutingKey,
		EventType:     r.Envelope.EventType,
		AggregateID:   r.Envelope.AggregateID,
		CorrelationID: r.Envelope.CorrelationID,
		Payload:       datatypes.JSON(r.Envelope.Payload),
		OccurredAt:    r.Envelope.OccurredAt,
		Attempts:      r.Attempts,
		LastError:     r.LastError,
		PublishedAt:   r.PublishedAt,
		CreatedAt:     r.CreatedAt,
	}
}

func OutboxModelToRecord(m *models.OutboxEventModel) *outbox.Record {
	return &outbox.Record{
		ID: m.ID,
		Envelope: outbox.Envelope{
			ID:            m.EnvelopeID,
			EventType:     m.EventType,
			AggregateID:   m.AggregateID,
			CorrelationID: m.CorrelationID,
			OccurredAt:    m.OccurredAt.UTC(),
			Payload:       json.RawMessage(m.Payload),
		},
		RoutingKey:  m.RoutingKey,
		Attempts:    m.Attempts,
		LastError:   m.LastError,
		PublishedAt: utcPtr(m.PublishedAt),
		CreatedAt:   m.CreatedAt.UTC(),
	}
}
