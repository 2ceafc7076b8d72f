package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/utils/apperrors"
	"github.com/gridpot/squares-backend/utils/logger"
)

// IngestScore accepts a checkpoint or score-change event from the feed.
// Engine-level problems (out-of-order checkpoints, bad labels) are audit
// logged, not surfaced here: the feed is delivered at-least-once and will
// retry, and no end user is waiting on this response.
func (a *API) IngestScore(c *gin.Context) {
	id, ok := poolIDParam(c)
	if !ok {
		return
	}

	var upd models.ScoreUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		respondError(c, apperrors.Wrap(apperrors.InvalidArgument, "malformed score update", err))
		return
	}

	if err := a.Payouts.HandleScore(c.Request.Context(), id, upd); err != nil {
		logger.Errorf("score update for pool %d failed: %v", id, err)
		c.JSON(http.StatusAccepted, gin.H{"accepted": false})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}
