package handler

import (
	"time"

	"loyalty-ledger/internal/adapter/http/dto"
	"loyalty-ledger/internal/core/ports"
	"loyalty-ledger/pkg/apperror"
	"loyalty-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// CustomerHandler handles customer account lookups.
type CustomerHandler struct {
	accounts ports.AccountRepository
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(accounts ports.AccountRepository) *CustomerHandler {
	return &CustomerHandler{accounts: accounts}
}

// Get handles GET /api/v1/customers/:dni.
func (h *CustomerHandler) Get(c *gin.Context) {
	dni := c.Param("dni")
	if dni == "" {
		response.Error(c, apperror.Validation("dni is required"))
		return
	}

	account, err := h.accounts.GetByDNI(c.Request.Context(), dni)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if account == nil {
		response.Error(c, apperror.ErrCustomerNotFound(dni))
		return
	}

	body := dto.CustomerResponse{
		DNI:        account.DNI,
		Points:     account.Points,
		VisitCount: account.VisitCount,
	}
	if account.LastVisitAt != nil {
		visited := account.LastVisitAt.Format(time.RFC3339)
		body.LastVisitAt = &visited
	}
	response.OK(c, body)
}
