package handler

import (
	"loyalty-ledger/internal/adapter/http/dto"
	"loyalty-ledger/internal/adapter/http/middleware"
	"loyalty-ledger/internal/core/domain"
	"loyalty-ledger/internal/core/ports"
	"loyalty-ledger/pkg/apperror"
	"loyalty-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ScanHandler handles scan submissions and queue introspection.
type ScanHandler struct {
	facade  ports.FacadeService
	queue   ports.QueueService
	monitor ports.ConnectivityMonitor
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(facade ports.FacadeService, queue ports.QueueService, monitor ports.ConnectivityMonitor) *ScanHandler {
	return &ScanHandler{facade: facade, queue: queue, monitor: monitor}
}

// Submit handles POST /api/v1/scans. The response is always the uniform
// tri-state result; queued operations answer 202.
func (h *ScanHandler) Submit(c *gin.Context) {
	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	actorID := c.GetString(middleware.CtxUsername)
	if req.CustomerDNI != "" {
		actorID = req.CustomerDNI
	}

	var location *domain.GeoPoint
	if req.Location != nil {
		location = &domain.GeoPoint{Lat: req.Location.Lat, Lng: req.Location.Lng}
	}

	result := h.facade.Submit(c.Request.Context(), ports.SubmitRequest{
		Code:     domain.DecodeScanCode(req.Code),
		ActorID:  actorID,
		DeviceID: req.DeviceID,
		Location: location,
	})

	body := dto.ScanResponse{
		Status:  string(result.Status),
		Reason:  result.Reason,
		Balance: result.Balance,
	}
	if result.Benefit != nil {
		body.Benefit = &dto.BenefitDTO{
			ID:          result.Benefit.ID,
			Name:        result.Benefit.Name,
			Description: result.Benefit.Description,
		}
	}

	if result.Status == domain.ResultQueuedForRetry {
		response.Accepted(c, body)
		return
	}
	response.OK(c, body)
}

// QueueStatus handles GET /api/v1/queue/status.
func (h *ScanHandler) QueueStatus(c *gin.Context) {
	pending, err := h.queue.Pending()
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	response.OK(c, dto.QueueStatusResponse{
		Pending: pending,
		Online:  h.monitor.Online(),
	})
}
