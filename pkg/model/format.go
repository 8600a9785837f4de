package model

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"

	OrderStatusPending   = "PENDING"
	OrderStatusApproved  = "APPROVED"
	OrderStatusRejected  = "REJECTED"
	OrderStatusExecuted  = "EXECUTED"
	OrderStatusCancelled = "CANCELLED"
)

type Balance struct {
	Currency  string  `json:"currency"`
	Available float64 `json:"available"`
	Locked    float64 `json:"locked"`
	Total     float64 `json:"total"`
}

type MarketTick struct {
	Time     time.Time `json:"time"`
	Symbol   string    `json:"symbol"`
	Exchange string    `json:"exchange"`
	Price    float64   `json:"price"`
	Volume   float64   `json:"volume"`
}

type OhlcvCandle struct {
	Bucket   time.Time `json:"bucket"`
	Symbol   string    `json:"symbol"`
	Exchange string    `json:"exchange"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Valid reports whether low <= open, close <= high. Decoding never checks it.
func (c *OhlcvCandle) Valid() bool {
	return c.Low <= c.High &&
		c.Low <= c.Open && c.Open <= c.High &&
		c.Low <= c.Close && c.Close <= c.High
}

// PriceResponse carries a nil Price when the backend has no recent data.
type PriceResponse struct {
	Symbol    string    `json:"symbol"`
	Price     *float64  `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

type PlaceOrderRequest struct {
	Symbol    string   `json:"symbol" validate:"required"`
	Side      string   `json:"side" validate:"required,oneof=BUY SELL"`
	OrderType string   `json:"orderType" validate:"required,oneof=MARKET LIMIT"`
	Quantity  float64  `json:"quantity" validate:"gt=0"`
	Price     *float64 `json:"price,omitempty" validate:"required_if=OrderType LIMIT,omitempty,gt=0"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate applies the same rules the backend enforces on a new order.
// The returned error is a validator.ValidationErrors when a field is rejected.
func (r *PlaceOrderRequest) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New()
	})

	return validate.Struct(r)
}

type OrderResponse struct {
	Success bool   `json:"success"`
	OrderId string `json:"orderId"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type Order struct {
	Id         string     `json:"id"`
	CreatedAt  time.Time  `json:"createdAt"`
	Symbol     string     `json:"symbol"`
	Side       string     `json:"side"`
	OrderType  string     `json:"orderType"`
	Quantity   float64    `json:"quantity"`
	Price      *float64   `json:"price"`
	Status     string     `json:"status"`
	ExecutedAt *time.Time `json:"executedAt"`
	Exchange   string     `json:"exchange"`
}
