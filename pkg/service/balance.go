package service

import (
	"context"
	"net/http"
	"net/url"

	"kairos/pkg/model"
	"kairos/pkg/restclt"
)

const balancePath = "/api/balance"

type BalanceService struct {
	client *restclt.Client
}

func NewBalanceService(client *restclt.Client) *BalanceService {
	return &BalanceService{client: client}
}

// GetBalance fetches the balance for one currency.
func (s *BalanceService) GetBalance(ctx context.Context, currency string) (*model.Balance, error) {
	var balance model.Balance
	if err := s.client.Do(ctx, &restclt.RequestOption{
		Method: http.MethodGet,
		Path:   balancePath + "/" + url.PathEscape(currency),
	}, &balance); err != nil {
		return nil, err
	}

	return &balance, nil
}
