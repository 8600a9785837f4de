package service

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"kairos/pkg/model"
	"kairos/pkg/restclt"
)

const (
	ordersPath = "/api/orders"

	DefaultOrderLimit = 50
)

// TradingService leaves the meaning of a failed OrderResponse to the caller.
type TradingService struct {
	client *restclt.Client
}

func NewTradingService(client *restclt.Client) *TradingService {
	return &TradingService{client: client}
}

// PlaceOrder sends the request as is. Call request.Validate first to check it locally.
func (s *TradingService) PlaceOrder(ctx context.Context, request model.PlaceOrderRequest) (*model.OrderResponse, error) {
	return s.orderCommand(ctx, &restclt.RequestOption{
		Method: http.MethodPost,
		Path:   ordersPath,
		Body:   request,
	})
}

func (s *TradingService) CancelOrder(ctx context.Context, orderId string) (*model.OrderResponse, error) {
	return s.orderCommand(ctx, &restclt.RequestOption{
		Method: http.MethodDelete,
		Path:   ordersPath + "/" + url.PathEscape(orderId),
	})
}

func (s *TradingService) GetOrderStatus(ctx context.Context, orderId string) (*model.OrderResponse, error) {
	return s.orderCommand(ctx, &restclt.RequestOption{
		Method: http.MethodGet,
		Path:   ordersPath + "/" + url.PathEscape(orderId) + "/status",
	})
}

// GetOrderHistory returns the newest orders. A limit <= 0 sends DefaultOrderLimit.
func (s *TradingService) GetOrderHistory(ctx context.Context, limit int) ([]model.Order, error) {
	return s.orderList(ctx, &restclt.RequestOption{
		Method: http.MethodGet,
		Path:   ordersPath + "/history",
		Params: limitParams(limit, DefaultOrderLimit),
	})
}

func (s *TradingService) GetOrdersByTimeRange(ctx context.Context, start, end time.Time) ([]model.Order, error) {
	return s.orderList(ctx, &restclt.RequestOption{
		Method: http.MethodGet,
		Path:   ordersPath + "/history/range",
		Params: rangeParams(start, end),
	})
}

// GetOrdersByStatus filters by status. A limit <= 0 sends DefaultOrderLimit.
func (s *TradingService) GetOrdersByStatus(ctx context.Context, status string, limit int) ([]model.Order, error) {
	return s.orderList(ctx, &restclt.RequestOption{
		Method: http.MethodGet,
		Path:   ordersPath + "/status/" + url.PathEscape(status),
		Params: limitParams(limit, DefaultOrderLimit),
	})
}

func (s *TradingService) orderCommand(ctx context.Context, option *restclt.RequestOption) (*model.OrderResponse, error) {
	var response model.OrderResponse
	if err := s.client.Do(ctx, option, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

func (s *TradingService) orderList(ctx context.Context, option *restclt.RequestOption) ([]model.Order, error) {
	var orders []model.Order
	if err := s.client.Do(ctx, option, &orders); err != nil {
		return nil, err
	}

	return orders, nil
}
