// Stats HTTP handler.
//
// This file exposes the dashboard's headline counters:
//   - GET /stats  (contact/agent/conversation/message totals + recent signups)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zeffr-it/go-support-relay/internal/domain"
	"github.com/zeffr-it/go-support-relay/internal/repo"
)

// recentContactsLimit bounds the registration feed on the stats endpoint.
const recentContactsLimit = 6

// StatsResponse bundles dashboard counters with the newest contacts.
type StatsResponse struct {
	Stats          *repo.RelayStats  `json:"stats"`
	RecentContacts []domain.ChatUser `json:"recent_contacts"`
}

// GetStats godoc
// @ID          getStats
// @Summary     Dashboard statistics
// @Description Returns contact/agent/conversation/message totals and the newest contacts.
// @Tags        Stats
// @Produce     json
//
// @Success     200  {object} handlers.StatsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := repo.GetRelayStats(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	recent, err := repo.RecentChatUsers(ctx, h.db, recentContactsLimit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, StatsResponse{Stats: stats, RecentContacts: recent})
}
