package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/wholesale_backend/models"
)

const (
	RoleAdmin = "admin"
	// RoleStaff maintains the catalog and stock.
	RoleStaff = "staff"
)

type outboxReplayRequest struct {
	RecordId int `json:"record_id"`
}

// outboxReplay puts a FAILED or DEAD order event back in the dispatcher's queue.
func (h *Handler) outboxReplay() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.RecordId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "record_id is required"})
			return
		}

		now := time.Now().UTC()
		record, err := h.Store.OrderOutbox().Update(c.Request.Context(), req.RecordId, map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"publish_attempts":   0,
			"next_attempt_at":    &now,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
		})
		if err != nil {
			writeError(c, h.Logger, "outboxReplay", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"record_id":       record.ID,
			"publish_status":  record.PublishStatus,
			"next_attempt_at": now.Format(time.RFC3339Nano),
		})
	}
}
