package database

import (
	"context"

	"github.com/rs/zerolog"

	"kairos/pkg/model"
)

// Recorder mirrors stream messages into the hot data store.
type Recorder struct {
	interactor *Interactor
	logger     zerolog.Logger
	publish    bool
}

func NewRecorder(interactor *Interactor, publish bool, logger zerolog.Logger) *Recorder {
	return &Recorder{
		interactor: interactor,
		publish:    publish,
		logger:     logger.With().Str("component", "recorder").Logger(),
	}
}

// Record stores the price of msg when it carries one and republishes msg if enabled.
func (r *Recorder) Record(ctx context.Context, msg *model.MarketDataMessage) error {
	if msg.Symbol != nil && msg.Price != nil {
		if err := r.interactor.SetLatestPrice(ctx, *msg.Symbol, *msg.Price); err != nil {
			return err
		}
	}

	if r.publish {
		return r.interactor.PublishMarketData(ctx, msg)
	}

	return nil
}

// Run records messages until messages is closed or ctx is done.
func (r *Recorder) Run(ctx context.Context, messages <-chan model.MarketDataMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, more := <-messages:
			if !more {
				return
			}

			if err := r.Record(ctx, &msg); err != nil {
				r.logger.Warn().Err(err).Str("type", msg.Type).Msg("record market data")
			}
		}
	}
}
