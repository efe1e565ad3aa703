package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/response"
)

type energyProxy interface {
	CreateOrder(ctx context.Context, req models.EnergyOrderRequest) (json.RawMessage, error)
	CheckOrder(ctx context.Context, req models.EnergyOrderQuery) (json.RawMessage, error)
	CheckAddress(ctx context.Context, req models.EnergyAddressQuery) (json.RawMessage, error)
}

// EnergyHandler relays energy rental calls to the signed upstream API.
type EnergyHandler struct {
	energy energyProxy
}

// NewEnergyHandler constructs the handler.
func NewEnergyHandler(energy energyProxy) *EnergyHandler {
	return &EnergyHandler{energy: energy}
}

// CreateOrder godoc
// @Summary Rent energy for an address
// @Tags Energy
// @Accept json
// @Produce json
// @Param payload body models.EnergyOrderRequest true "Order"
// @Failure 502 {object} response.ErrorEnvelope
// @Router /energy/createOrder [post]
func (h *EnergyHandler) CreateOrder(c *gin.Context) {
	var req models.EnergyOrderRequest
	if !bindJSON(c, &req, "invalid energy order payload") {
		return
	}
	h.relay(c, func(ctx context.Context) (json.RawMessage, error) { return h.energy.CreateOrder(ctx, req) })
}

// CheckOrder godoc
// @Summary Status of an energy order
// @Tags Energy
// @Accept json
// @Produce json
// @Param payload body models.EnergyOrderQuery true "Order reference"
// @Router /energy/checkOrder [post]
func (h *EnergyHandler) CheckOrder(c *gin.Context) {
	var req models.EnergyOrderQuery
	if !bindJSON(c, &req, "invalid order query") {
		return
	}
	h.relay(c, func(ctx context.Context) (json.RawMessage, error) { return h.energy.CheckOrder(ctx, req) })
}

// CheckAddress godoc
// @Summary Whether an address can receive energy
// @Tags Energy
// @Accept json
// @Produce json
// @Param payload body models.EnergyAddressQuery true "Address"
// @Router /energy/checkAddress [post]
func (h *EnergyHandler) CheckAddress(c *gin.Context) {
	var req models.EnergyAddressQuery
	if !bindJSON(c, &req, "invalid address query") {
		return
	}
	h.relay(c, func(ctx context.Context) (json.RawMessage, error) { return h.energy.CheckAddress(ctx, req) })
}

func (h *EnergyHandler) relay(c *gin.Context, call func(context.Context) (json.RawMessage, error)) {
	body, err := call(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
