package handler

import (
	"net/http"

	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/pending"
	"github.com/tradepoll/delivery-service/internal/queue"
)

// MetricsHandler serves a JSON snapshot of the in-memory pipeline state.
// The raw Prometheus endpoint lives at /metrics; this one is for humans
// and the admin dashboard.
type MetricsHandler struct {
	announceQ *queue.FIFO[domain.AnnounceJob]
	sendQ     *queue.FIFO[domain.SendJob]
	pendingS  *pending.Set
}

func NewMetricsHandler(
	announceQ *queue.FIFO[domain.AnnounceJob],
	sendQ *queue.FIFO[domain.SendJob],
	pendingS *pending.Set,
) *MetricsHandler {
	return &MetricsHandler{announceQ: announceQ, sendQ: sendQ, pendingS: pendingS}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  In-memory pipeline snapshot
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]int
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]int{
		"announce_queue_depth": h.announceQ.Len(),
		"send_queue_depth":     h.sendQ.Len(),
		"pending_selections":   h.pendingS.Len(),
	})
}
