package database

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"kairos/pkg/model"
)

const DefaultMarketDataChannel = "market_data"

// Interactor reads and writes hot data using the same key scheme as the backend.
type Interactor struct {
	connector Connector
	channel   string
}

func NewInteractor(connector Connector) *Interactor {
	return &Interactor{
		connector: connector,
		channel:   DefaultMarketDataChannel,
	}
}

func (i *Interactor) WithChannel(channel string) *Interactor {
	if channel != "" {
		i.channel = channel
	}
	return i
}

func (_ *Interactor) GenerateKeyWithPath(path []string) string {
	return strings.Join(path, ":")
}

func (i *Interactor) GetString(ctx context.Context, key string) (*string, error) {
	return i.connector.Get(ctx, key)
}

func (i *Interactor) SetString(ctx context.Context, key string, value *string) error {
	return i.connector.Set(ctx, key, value)
}

func (i *Interactor) Delete(ctx context.Context, key string) error {
	return i.connector.Delete(ctx, key)
}

// SetLatestPrice stores price as a plain decimal string at price:{symbol}.
func (i *Interactor) SetLatestPrice(ctx context.Context, symbol string, price float64) error {
	key := i.GenerateKeyWithPath([]string{"price", symbol})
	value := strconv.FormatFloat(price, 'f', -1, 64)
	return i.connector.Set(ctx, key, &value)
}

func (i *Interactor) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	key := i.GenerateKeyWithPath([]string{"price", symbol})

	value, err := i.connector.Get(ctx, key)
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(*value, 64)
}

func (i *Interactor) GetBalance(ctx context.Context, currency string) (*model.Balance, error) {
	var data model.Balance
	if err := i.getJSON(ctx, i.GenerateKeyWithPath([]string{"balance", currency}), &data); err != nil {
		return nil, err
	}

	return &data, nil
}

func (i *Interactor) SetBalance(ctx context.Context, balance *model.Balance) error {
	return i.setJSON(ctx, i.GenerateKeyWithPath([]string{"balance", balance.Currency}), balance)
}

func (i *Interactor) GetOrder(ctx context.Context, orderId string) (*model.Order, error) {
	var data model.Order
	if err := i.getJSON(ctx, i.GenerateKeyWithPath([]string{"order", orderId}), &data); err != nil {
		return nil, err
	}

	return &data, nil
}

func (i *Interactor) SetOrder(ctx context.Context, order *model.Order) error {
	return i.setJSON(ctx, i.GenerateKeyWithPath([]string{"order", order.Id}), order)
}

func (i *Interactor) PublishMarketData(ctx context.Context, msg *model.MarketDataMessage) error {
	dataBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return i.connector.Publish(ctx, i.channel, dataBytes)
}

func (i *Interactor) getJSON(ctx context.Context, key string, v interface{}) error {
	dataStringPointer, err := i.connector.Get(ctx, key)
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(*dataStringPointer), v)
}

func (i *Interactor) setJSON(ctx context.Context, key string, v interface{}) error {
	if dataBytes, err := json.Marshal(v); err != nil {
		return err
	} else {
		dataString := string(dataBytes)
		return i.connector.Set(ctx, key, &dataString)
	}
}
