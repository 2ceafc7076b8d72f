package services

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/store"
	"github.com/gridpot/squares-backend/utils/logger"
)

// recordAudit appends one immutable entry to the pool's dispute log and
// mirrors it to the process log. st is the transactional store when called
// from inside UpdatePool so the entry lands with the mutation it describes.
func recordAudit(ctx context.Context, st store.Store, poolID uint, actor, severity, message string, payload interface{}) {
	entry := &models.AuditEntry{
		PoolID:   poolID,
		Actor:    actor,
		Severity: severity,
		Message:  message,
	}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			entry.Payload = datatypes.JSON(b)
		}
	}
	if err := st.AppendAudit(ctx, entry); err != nil {
		logger.Errorf("[audit] pool %d: failed to append %q: %v", poolID, message, err)
		return
	}
	switch severity {
	case models.AuditError:
		logger.Errorf("[audit] pool %d (%s): %s", poolID, actor, message)
	case models.AuditWarning:
		logger.Warnf("[audit] pool %d (%s): %s", poolID, actor, message)
	default:
		logger.Infof("[audit] pool %d (%s): %s", poolID, actor, message)
	}
}
