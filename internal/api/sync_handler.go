package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// TriggerSyncRequest is the body of POST /api/v1/sync. An empty scope
// means all.
type TriggerSyncRequest struct {
	Scope string `json:"scope"`
}

// SyncHandler handles sync-related HTTP requests.
type SyncHandler struct {
	sync SyncService
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(sync SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// TriggerSync handles POST /api/v1/sync. The pass runs within the request.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	var req TriggerSyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid request: "+err.Error())
			return
		}
	}

	scope, err := domain.ParseSyncScope(req.Scope)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	summary, err := h.sync.Sync(c.Request.Context(), scope)
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		respondError(c, http.StatusConflict, "sync already in progress")
	case domain.IsQuotaExceeded(err):
		_ = c.Error(err)
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "index quota exceeded, pass stopped early",
			"summary": summary,
		})
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Sync failed",
			"summary": summary,
		})
	default:
		c.JSON(http.StatusOK, summary)
	}
}

// Audit handles GET /api/v1/sync/audit
func (h *SyncHandler) Audit(c *gin.Context) {
	report, err := h.sync.Audit(c.Request.Context())
	if err != nil {
		respondInternalError(c, "Failed to audit index", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"in_sync": report.InSync(),
		"report":  report,
	})
}
