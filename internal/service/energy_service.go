package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/energy"
	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
)

type energyPoster interface {
	Post(ctx context.Context, path string, payload map[string]interface{}) (json.RawMessage, error)
}

// EnergyService validates and forwards energy-rental calls.
type EnergyService struct {
	client    energyPoster
	validator *validator.Validate
	logger    *zap.Logger
	timeout   time.Duration
}

// NewEnergyService constructs an EnergyService.
func NewEnergyService(client energyPoster, validate *validator.Validate, timeout time.Duration, logger *zap.Logger) *EnergyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	registerTronRules(validate)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EnergyService{client: client, validator: validate, logger: logger, timeout: timeout}
}

// CreateOrder rents energy for the receive address.
func (s *EnergyService) CreateOrder(ctx context.Context, req models.EnergyOrderRequest) (json.RawMessage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid energy order")
	}
	address, err := requireAddress("receive_address", req.ReceiveAddress)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"receive_address": address,
		"energy_amount":   req.Energy,
	}
	if req.Duration != "" {
		payload["rent_duration"] = req.Duration
	}
	if req.OutTradeNo != "" {
		payload["out_trade_no"] = req.OutTradeNo
	}
	return s.forward(ctx, energy.PathCreateOrder, payload)
}

// CheckOrder reports an order's status.
func (s *EnergyService) CheckOrder(ctx context.Context, req models.EnergyOrderQuery) (json.RawMessage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid order query")
	}
	payload := map[string]interface{}{}
	if req.OrderNo != "" {
		payload["order_no"] = req.OrderNo
	}
	if req.OutTradeNo != "" {
		payload["out_trade_no"] = req.OutTradeNo
	}
	return s.forward(ctx, energy.PathCheckOrder, payload)
}

// CheckAddress asks the marketplace whether the address is eligible.
func (s *EnergyService) CheckAddress(ctx context.Context, req models.EnergyAddressQuery) (json.RawMessage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid address query")
	}
	address, err := requireAddress("address", req.Address)
	if err != nil {
		return nil, err
	}
	return s.forward(ctx, energy.PathCheckAddress, map[string]interface{}{"address": address})
}

func (s *EnergyService) forward(ctx context.Context, path string, payload map[string]interface{}) (json.RawMessage, error) {
	if s.client == nil {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "energy marketplace not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.client.Post(ctx, path, payload)
	if err == nil {
		return body, nil
	}
	s.logger.Warn("energy marketplace call failed", zap.String("path", path), zap.Error(err))

	var statusErr *energy.StatusError
	switch {
	case errors.Is(err, energy.ErrNotConfigured):
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "energy marketplace not configured")
	case errors.As(err, &statusErr) && statusErr.Status == http.StatusBadRequest:
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "energy marketplace rejected the request")
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "energy marketplace request failed")
	}
}
