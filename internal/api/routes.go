// Package api exposes the serve-mode REST surface: batch submission,
// progress, audit history, and a websocket progress stream.
package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/dlaslab/htmlviewer-engine/internal/db"
	"github.com/dlaslab/htmlviewer-engine/internal/pipeline"
	"github.com/dlaslab/htmlviewer-engine/internal/scanner"
	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

// EngineVersion is reported by the health endpoint.
const EngineVersion = "DLAS HTML Viewer Engine v2.3"

type APIHandler struct {
	store *db.AuditStore

	mutex   sync.Mutex
	current *scanner.Orchestrator
}

// SetupRouter wires the serve-mode endpoints. token gates the batch-control
// endpoints; see AuthMiddleware.
func SetupRouter(store *db.AuditStore, wsHub *Hub, token string) *gin.Engine {
	r := gin.Default()
	handler := &APIHandler{store: store}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
		pub.GET("/progress", handler.handleProgress)
	}

	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware(token))
	{
		auth.POST("/convert", handler.handleStartBatch(wsHub))
		auth.POST("/stop", handler.handleStop)
		auth.GET("/history", handler.handleHistory)
	}
	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "operational",
		"engine":      EngineVersion,
		"dbConnected": h.store != nil,
		"capabilities": gin.H{
			"shape_vendor":   true,
			"exo_vendor":     true,
			"zip_expansion":  true,
			"bite_synthesis": true,
		},
	})
}

// handleStartBatch launches a batch run in the background.
// POST /api/v1/convert { "root": "...", "keyword": "", "hours": 0, "skipProcessed": true, "outDir": "" }
func (h *APIHandler) handleStartBatch(wsHub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Root          string  `json:"root"`
			Keyword       string  `json:"keyword"`
			Hours         float64 `json:"hours"`
			SkipProcessed bool    `json:"skipProcessed"`
			OutDir        string  `json:"outDir"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Root == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {root, ...}"})
			return
		}

		h.mutex.Lock()
		defer h.mutex.Unlock()
		if h.current != nil && h.current.GetProgress().IsRunning {
			c.JSON(http.StatusConflict, gin.H{"error": "A batch is already running", "jobId": h.current.JobID()})
			return
		}

		orch := scanner.NewOrchestrator(scanner.Options{
			Root:           req.Root,
			Keyword:        req.Keyword,
			TimeLimitHours: req.Hours,
			SkipProcessed:  req.SkipProcessed,
			OutDir:         req.OutDir,
			Progress:       BroadcastProgress(wsHub),
		}, h.store)
		h.current = orch

		// Run() itself emits the final Done event (with the batch report)
		// through Progress, so the hub hears about completion without a
		// second broadcast here.
		go orch.Run(context.Background())

		c.JSON(http.StatusOK, gin.H{"status": "batch_started", "jobId": orch.JobID()})
	}
}

func (h *APIHandler) handleProgress(c *gin.Context) {
	h.mutex.Lock()
	orch := h.current
	h.mutex.Unlock()
	if orch == nil {
		c.JSON(http.StatusOK, scanner.Progress{})
		return
	}
	c.JSON(http.StatusOK, orch.GetProgress())
}

func (h *APIHandler) handleStop(c *gin.Context) {
	h.mutex.Lock()
	orch := h.current
	h.mutex.Unlock()
	if orch == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No batch running"})
		return
	}
	orch.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stop_requested", "jobId": orch.JobID()})
}

func (h *APIHandler) handleHistory(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.store.RecentOutcomes(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "count": len(rows)})
}

// BroadcastProgress adapts the pipeline progress callback onto the websocket
// hub, forwarding the event as-is so case-scoped subscribers can filter on
// CasePath. Wired as the orchestrator's Progress function.
func BroadcastProgress(wsHub *Hub) pipeline.ProgressFunc {
	return func(ev models.ProgressEvent) {
		wsHub.Broadcast(ev)
		log.Printf("[API] %5.1f%% %s", ev.Percent, ev.Message)
	}
}
