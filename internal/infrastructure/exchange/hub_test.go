package exchange_test

import (
	"context"
	"errors"
	"testing"

	"arbsig/internal/domain/model"
	domainservice "arbsig/internal/domain/service"
	"arbsig/internal/infrastructure/exchange"
	"arbsig/internal/infrastructure/stream"

	_ "arbsig/internal/infrastructure/exchange/binance"
	_ "arbsig/internal/infrastructure/exchange/bitget"
	_ "arbsig/internal/infrastructure/exchange/bybit"
	_ "arbsig/internal/infrastructure/exchange/okx"
)

type badAdapter struct{}

func (badAdapter) Name() string { return "BADVENUE" }
func (badAdapter) Descriptor(string) (stream.Descriptor, error) {
	return stream.Descriptor{}, errors.New("no descriptor")
}

func TestHubRejectsUnknownVenue(t *testing.T) {
	mux := stream.New(domainservice.NewQuoteCache(), nil, stream.Options{})
	hub := exchange.NewHub(mux, map[string]exchange.Adapter{})

	noop := func(model.StreamKey, model.QuoteUpdate) {}
	_, err := hub.Subscribe(model.NewStreamKey("NOPE", "BTCUSDT"), noop)
	if !errors.Is(err, exchange.ErrVenueNotSupported) {
		t.Errorf("expected ErrVenueNotSupported, got %v", err)
	}
}

func TestHubPropagatesDescriptorError(t *testing.T) {
	mux := stream.New(domainservice.NewQuoteCache(), nil, stream.Options{})
	hub := exchange.NewHub(mux, map[string]exchange.Adapter{"BADVENUE": badAdapter{}})

	noop := func(model.StreamKey, model.QuoteUpdate) {}
	if _, err := hub.Subscribe(model.NewStreamKey("BADVENUE", "BTCUSDT"), noop); err == nil {
		t.Error("descriptor failure must propagate")
	}
}

func TestRegistrySelfRegistration(t *testing.T) {
	venues := []string{
		exchange.VenueBinance,
		exchange.VenueBybit,
		exchange.VenueOKX,
		exchange.VenueBitget,
	}
	for _, venue := range venues {
		factory, ok := exchange.Get(venue)
		if !ok {
			t.Errorf("%s not registered", venue)
			continue
		}
		adapter := factory("wss://example.test", "")
		if adapter.Name() != venue {
			t.Errorf("adapter name mismatch: %s != %s", adapter.Name(), venue)
		}
	}
}

func TestFundingServiceRouting(t *testing.T) {
	fs := exchange.NewFundingService()
	_, _, err := fs.GetFundingRate(context.Background(), "NOPE", "BTCUSDT")
	if !errors.Is(err, exchange.ErrVenueNotSupported) {
		t.Errorf("expected ErrVenueNotSupported, got %v", err)
	}
}
