package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/utils/apperrors"
)

// ResolveIdentity echoes the caller's identity, minting a fresh guest key
// when the caller presented neither an account id nor a guest key. Clients
// hold onto the guest key and send it on subsequent requests.
func (a *API) ResolveIdentity(c *gin.Context) {
	identity := callerIdentity(c)
	if identity.IsEmpty() {
		identity = models.GuestOccupant(a.Identity.NewGuestKey(), "")
	}
	c.JSON(http.StatusOK, gin.H{"kind": identity.Kind, "id": identity.ID})
}

// CreateClaimCode issues a short pool-scoped code binding the caller's guest
// key, redeemable later by an authenticated account.
func (a *API) CreateClaimCode(c *gin.Context) {
	id, ok := poolIDParam(c)
	if !ok {
		return
	}

	// Body is optional; the guest key may arrive as a header instead.
	var req struct {
		GuestKey string `json:"guest_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, apperrors.Wrap(apperrors.InvalidArgument, "malformed request", err))
		return
	}
	guestKey := req.GuestKey
	if guestKey == "" {
		guestKey = c.GetHeader(headerGuestKey)
	}

	code, err := a.Identity.IssueClaimCode(c.Request.Context(), id, guestKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": code})
}

// ClaimByCode transfers the bound guest's cells to the caller's account.
func (a *API) ClaimByCode(c *gin.Context) {
	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, apperrors.Wrap(apperrors.InvalidArgument, "malformed request", err))
		return
	}
	accountID := req.AccountID
	if accountID == "" {
		accountID = c.GetHeader(headerAccountID)
	}

	res, err := a.Identity.ResolveByCode(c.Request.Context(), c.Param("code"), accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// MergeGuestCells is the codeless transfer for callers who still hold their
// guest key from a prior session.
func (a *API) MergeGuestCells(c *gin.Context) {
	id, ok := poolIDParam(c)
	if !ok {
		return
	}

	var req struct {
		GuestKey  string `json:"guest_key" binding:"required"`
		AccountID string `json:"account_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(apperrors.InvalidArgument, "malformed request", err))
		return
	}
	accountID := req.AccountID
	if accountID == "" {
		accountID = c.GetHeader(headerAccountID)
	}

	res, err := a.Identity.MergeGuestCells(c.Request.Context(), id, req.GuestKey, accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
