package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-commerce/internal/cache"
	"github.com/noah-isme/toko-commerce/internal/pricing"
)

type stubStore struct {
	values map[string]string
	err    error
	loads  int
}

func (s *stubStore) Load(context.Context) (map[string]string, error) {
	s.loads++
	return s.values, s.err
}

func TestParseOverridesDefaults(t *testing.T) {
	got := Parse(map[string]string{
		KeyCurrencyCode:      "eur",
		KeyCurrencySymbol:    "€",
		KeyCurrencyPosition:  "AFTER_SPACE",
		KeyDecimalSeparator:  ",",
		KeyThousandSeparator: ".",
		KeyTaxRate:           "21",
		KeyTaxOnShipping:     "true",
		KeyShippingRate:      "4.999",
	}, Defaults(), zerolog.Nop())

	require.Equal(t, "EUR", got.Currency.Code)
	require.Equal(t, pricing.PositionAfterSpace, got.Currency.Position)
	require.Equal(t, "21", got.Tax.Rate.String())
	require.True(t, got.Tax.AppliesToShipping)
	require.Equal(t, "4.99", got.ShippingRate.String())
	require.Equal(t, "1.234,50 €", pricing.FormatMoney(pricing.MustMoney("1234.5"), got.Currency))
}

func TestParseKeepsDefaultsForInvalidValues(t *testing.T) {
	got := Parse(map[string]string{
		KeyCurrencyCode:       "XXXX",
		KeyTaxRate:            "-3",
		KeyShippingRate:       "free",
		KeyClampNegativePrice: "maybe",
	}, Defaults(), zerolog.Nop())

	require.Equal(t, "USD", got.Currency.Code)
	require.True(t, got.Tax.Rate.IsZero())
	require.Equal(t, "0.00", got.ShippingRate.String())
	require.False(t, got.ClampNegativePrice)
	require.Equal(t, pricing.DiscountPolicy{}, got.Policy())
}

func TestProviderCachesAndInvalidates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := &stubStore{values: map[string]string{KeyTaxRate: "10", KeyClampNegativePrice: "1"}}
	p := &Provider{Store: store, Cache: cache.NewJSON(client, time.Minute), Logger: zerolog.Nop()}
	ctx := context.Background()

	first, err := p.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "10", first.Tax.Rate.String())
	require.True(t, first.Policy().ClampNegativePrice)

	store.values = map[string]string{KeyTaxRate: "12"}
	second, err := p.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "10", second.Tax.Rate.String(), "served from cache")
	require.Equal(t, 1, store.loads)

	require.NoError(t, p.Invalidate(ctx))
	third, err := p.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "12", third.Tax.Rate.String())
	require.Equal(t, 2, store.loads)
}

func TestProviderWithoutCacheAndStoreErrors(t *testing.T) {
	store := &stubStore{err: errors.New("db down")}
	p := &Provider{Store: store, Defaults: Defaults()}
	_, err := p.Get(context.Background())
	require.ErrorIs(t, err, store.err)

	store.err = nil
	store.values = nil
	got, err := p.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "USD", got.Currency.Code)
	require.NoError(t, p.Invalidate(context.Background()))

	var unset *Provider
	_, err = unset.Get(context.Background())
	require.Error(t, err)
}

func TestProviderFallsBackWhenRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()
	store := &stubStore{values: map[string]string{KeyCurrencyCode: "IDR", KeyCurrencySymbol: "Rp"}}
	p := &Provider{Store: store, Cache: cache.NewJSON(client, time.Minute), Logger: zerolog.Nop()}

	got, err := p.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "IDR", got.Currency.Code)
}
