package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gridpot/squares-backend/utils/apperrors"
)

// ListWinners returns every winner record for a pool.
func (a *API) ListWinners(c *gin.Context) {
	id, ok := poolIDParam(c)
	if !ok {
		return
	}
	winners, err := a.Winners.ListWinners(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, winners)
}

// MarkWinnerPaid flips a winner record's paid flag (admin).
func (a *API) MarkWinnerPaid(c *gin.Context) {
	if !a.requireAdmin(c) {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, apperrors.New(apperrors.InvalidArgument, "invalid winner id"))
		return
	}

	var req struct {
		Paid *bool `json:"paid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(apperrors.InvalidArgument, "malformed request", err))
		return
	}

	actor := c.GetHeader(headerAccountID)
	if actor == "" {
		actor = "admin"
	}
	w, err := a.Winners.MarkPaid(c.Request.Context(), uint(id), *req.Paid, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}
