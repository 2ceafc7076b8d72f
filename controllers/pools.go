package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/utils/apperrors"
)

// CreatePool validates and persists a new pool with an empty grid.
func (a *API) CreatePool(c *gin.Context) {
	if !a.requireAdmin(c) {
		return
	}
	var pool models.Pool
	if err := c.ShouldBindJSON(&pool); err != nil {
		respondError(c, apperrors.Wrap(apperrors.InvalidArgument, "malformed pool config", err))
		return
	}
	if err := a.Pools.CreatePool(c.Request.Context(), &pool); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pool)
}

// GetPool returns the grid and configuration for one pool.
func (a *API) GetPool(c *gin.Context) {
	id, ok := poolIDParam(c)
	if !ok {
		return
	}
	pool, err := a.Pools.GetPool(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pool)
}

// LockPool freezes the grid and assigns digits (admin).
func (a *API) LockPool(c *gin.Context) {
	if !a.requireAdmin(c) {
		return
	}
	id, ok := poolIDParam(c)
	if !ok {
		return
	}
	actor := c.GetHeader(headerAccountID)
	if actor == "" {
		actor = "admin"
	}
	if err := a.Locks.LockPool(c.Request.Context(), id, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": true})
}

// ListParticipants returns the denormalized per-identity aggregates.
func (a *API) ListParticipants(c *gin.Context) {
	id, ok := poolIDParam(c)
	if !ok {
		return
	}
	entries, err := a.Pools.ListParticipants(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// ListAudit returns the pool's append-only audit log.
func (a *API) ListAudit(c *gin.Context) {
	id, ok := poolIDParam(c)
	if !ok {
		return
	}
	entries, err := a.Pools.ListAudit(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
