package model

import (
	"encoding/json"
	"errors"
)

var knownMessageKeys = []string{"type", "symbol", "price", "volume", "timestamp"}

// MarketDataMessage is the envelope carried by the market data stream.
// Keys other than the typed ones are kept in Extra and written back on encode.
type MarketDataMessage struct {
	Type      string
	Symbol    *string
	Price     *float64
	Volume    *float64
	Timestamp *string
	Extra     map[string]json.RawMessage
}

func (m *MarketDataMessage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw == nil {
		return errors.New("market data message is not an object")
	}

	*m = MarketDataMessage{}

	if v, ok := raw["type"]; ok {
		if err := json.Unmarshal(v, &m.Type); err != nil {
			return err
		}
	}

	if err := decodeOptional(raw, "symbol", &m.Symbol); err != nil {
		return err
	}
	if err := decodeOptional(raw, "price", &m.Price); err != nil {
		return err
	}
	if err := decodeOptional(raw, "volume", &m.Volume); err != nil {
		return err
	}
	if err := decodeOptional(raw, "timestamp", &m.Timestamp); err != nil {
		return err
	}

	for _, key := range knownMessageKeys {
		delete(raw, key)
	}

	if len(raw) > 0 {
		m.Extra = raw
	}

	return nil
}

func (m MarketDataMessage) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.Extra)+5)

	for key, value := range m.Extra {
		out[key] = value
	}

	out["type"] = m.Type
	if m.Symbol != nil {
		out["symbol"] = *m.Symbol
	}
	if m.Price != nil {
		out["price"] = *m.Price
	}
	if m.Volume != nil {
		out["volume"] = *m.Volume
	}
	if m.Timestamp != nil {
		out["timestamp"] = *m.Timestamp
	}

	return json.Marshal(out)
}

// Field decodes an extra key into v. It returns false when the key is absent.
func (m *MarketDataMessage) Field(key string, v interface{}) (bool, error) {
	raw, ok := m.Extra[key]
	if !ok {
		return false, nil
	}

	return true, json.Unmarshal(raw, v)
}

func decodeOptional[T any](raw map[string]json.RawMessage, key string, dst **T) error {
	v, ok := raw[key]
	if !ok || string(v) == "null" {
		return nil
	}

	var value T
	if err := json.Unmarshal(v, &value); err != nil {
		return err
	}

	*dst = &value
	return nil
}
