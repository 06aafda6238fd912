package http

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/split-router/internal/adapters/persistence"
	"github.com/hxuan190/split-router/internal/aggregator"
	"github.com/hxuan190/split-router/internal/http/httputil"
)

type SnapshotHandler struct {
	aggregatorSvc *aggregator.Service
}

func NewSnapshotHandler(aggregatorSvc *aggregator.Service) *SnapshotHandler {
	return &SnapshotHandler{aggregatorSvc: aggregatorSvc}
}

func (h *SnapshotHandler) Root() string {
	return "/snapshots"
}

func (h *SnapshotHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.listSnapshots)
	pub.GET("/:id", h.getSnapshot)
	pub.GET("/:id/replay", h.replaySnapshot)
}

// @Summary List quote snapshots
// @Tags snapshots
// @Produce json
// @Param limit query int false "Maximum ids returned" default(50)
// @Success 200 {object} httputil.Response{data=[]string}
// @Router /api/v1/snapshots [get]
func (h *SnapshotHandler) listSnapshots(c *gin.Context) {
	ids, err := h.aggregatorSvc.ListSnapshots(parseLimit(c.Query("limit"), 50))
	if err != nil {
		h.handleError(c, err)
		return
	}
	httputil.Success(c, ids)
}

// @Summary Get a persisted quote snapshot
// @Description Returns the candidate quotes captured for a quote request.
// @Tags snapshots
// @Produce json
// @Param id path string true "Quote id"
// @Success 200 {object} httputil.Response{data=persistence.QuoteSnapshot}
// @Failure 404 {object} httputil.Response
// @Router /api/v1/snapshots/{id} [get]
func (h *SnapshotHandler) getSnapshot(c *gin.Context) {
	snap, err := h.aggregatorSvc.Snapshot(c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	httputil.Success(c, snap)
}

// @Summary Rerun the split search over a snapshot
// @Tags snapshots
// @Produce json
// @Param id path string true "Quote id"
// @Success 200 {object} httputil.Response{data=QuoteResponse}
// @Router /api/v1/snapshots/{id}/replay [get]
func (h *SnapshotHandler) replaySnapshot(c *gin.Context) {
	snap, err := h.aggregatorSvc.Snapshot(c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	cfg := h.aggregatorSvc.Defaults()
	result, err := h.aggregatorSvc.Replay(c.Request.Context(), snap, cfg)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	q := &aggregator.Quote{ID: snap.ID, Result: result, SnapshotID: snap.ID}
	httputil.Success(c, BuildQuoteResponse(q, result.TokenIn.ChainID))
}

func (h *SnapshotHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, persistence.ErrSnapshotNotFound):
		httputil.NotFound(c, err.Error())
	case errors.Is(err, aggregator.ErrSnapshotsDisabled):
		httputil.NotFound(c, err.Error())
	default:
		httputil.HandleError(c, err)
	}
}

func parseLimit(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
