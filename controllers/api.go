package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gridpot/squares-backend/models"
	"github.com/gridpot/squares-backend/services"
	"github.com/gridpot/squares-backend/utils/apperrors"
	"github.com/gridpot/squares-backend/utils/logger"
)

// Identity headers. Authenticated callers present an account id (set by the
// auth layer in front of this service); unauthenticated callers hold a guest
// key issued by GET /api/identity.
const (
	headerAccountID  = "X-Account-ID"
	headerGuestKey   = "X-Guest-Key"
	headerAdminToken = "X-Admin-Token"
)

type API struct {
	Pools        *services.PoolService
	Reservations *services.ReservationService
	Identity     *services.IdentityService
	Locks        *services.LockService
	Payouts      *services.PayoutEngine
	Winners      *services.WinnerService

	AdminToken string
}

func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("request failed: %v", err)
	}
	c.JSON(status, gin.H{
		"error": apperrors.MessageOf(err),
		"kind":  string(apperrors.KindOf(err)),
	})
}

func poolIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, apperrors.New(apperrors.InvalidArgument, "invalid pool id"))
		return 0, false
	}
	return uint(id), true
}

// callerIdentity resolves the request headers to an occupant. Empty when the
// caller presented neither an account id nor a guest key.
func callerIdentity(c *gin.Context) models.Occupant {
	if accountID := c.GetHeader(headerAccountID); accountID != "" {
		return models.AccountOccupant(accountID, "")
	}
	if guestKey := c.GetHeader(headerGuestKey); guestKey != "" {
		return models.GuestOccupant(guestKey, "")
	}
	return models.Occupant{}
}

// requireAdmin gates admin operations on a shared token. With no token
// configured the gate is open (single-operator dev setups).
func (a *API) requireAdmin(c *gin.Context) bool {
	if a.AdminToken != "" && c.GetHeader(headerAdminToken) != a.AdminToken {
		respondError(c, apperrors.New(apperrors.PermissionDenied, "admin token required"))
		return false
	}
	return true
}
