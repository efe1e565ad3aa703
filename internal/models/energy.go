package models

// MinEnergyOrder is the smallest energy amount the marketplace accepts.
const MinEnergyOrder = 32000

// EnergyOrderRequest rents energy for a receive address.
type EnergyOrderRequest struct {
	ReceiveAddress string `json:"receive_address" validate:"required,tron_address"`
	Energy         int64  `json:"energy" validate:"required,min=32000"`
	Duration       string `json:"duration" validate:"omitempty,oneof=1h 1d 3d 7d 14d 30d"`
	OutTradeNo     string `json:"out_trade_no" validate:"omitempty,max=64"`
}

// EnergyOrderQuery looks up a previously created order.
type EnergyOrderQuery struct {
	OrderNo    string `json:"order_no" validate:"required_without=OutTradeNo,max=64"`
	OutTradeNo string `json:"out_trade_no" validate:"omitempty,max=64"`
}

// EnergyAddressQuery checks whether an address can receive delegated energy.
type EnergyAddressQuery struct {
	Address string `json:"address" validate:"required,tron_address"`
}
