package tutor

import (
	"context"

	"go.uber.org/zap"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/metrics"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/safety"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/storage/models"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/logger"
)

type IncidentStore interface {
	InsertIncident(ctx context.Context, incident *models.Incident) error
}

// RecordIncidents returns a crisis hook that writes the anonymized
// incident and counts it. The write outlives a cancelled request.
func RecordIncidents(store IncidentStore) safety.Hook {
	return func(ctx context.Context, incident safety.Incident) {
		metrics.CrisisDetections.WithLabelValues(string(incident.Category), incident.Signal).Inc()

		logger.Warn("Crisis language detected",
			zap.String("incident_id", incident.ID),
			zap.String("category", string(incident.Category)),
			zap.Time("detected_at", incident.DetectedAt),
		)

		err := store.InsertIncident(context.WithoutCancel(ctx), &models.Incident{
			ID:         incident.ID,
			Category:   string(incident.Category),
			Signal:     incident.Signal,
			DetectedAt: incident.DetectedAt,
		})
		if err != nil {
			logger.Error("Failed to record incident", zap.String("incident_id", incident.ID), zap.Error(err))
		}
	}
}
