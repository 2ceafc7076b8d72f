package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridpot/squares-backend/utils/apperrors"
)

// ReserveCells claims one or more cells for the caller, all or nothing.
func (a *API) ReserveCells(c *gin.Context) {
	id, ok := poolIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Cells []int  `json:"cells" binding:"required"`
		Tag   string `json:"tag"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(apperrors.InvalidArgument, "malformed reservation request", err))
		return
	}

	identity := callerIdentity(c)
	if err := a.Reservations.ReserveCells(c.Request.Context(), id, req.Cells, req.Tag, identity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reserved": req.Cells})
}
