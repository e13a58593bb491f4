// Package settings loads the store-wide pricing configuration (currency
// formatting, tax, shipping) from the settings table and caches it in Redis.
package settings

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-commerce/internal/cache"
	"github.com/noah-isme/toko-commerce/internal/pricing"
)

// Keys read from the settings table.
const (
	KeyCurrencyCode       = "currency_code"
	KeyCurrencySymbol     = "currency_symbol"
	KeyCurrencyPosition   = "currency_position"
	KeyCurrencyFormat     = "currency_format"
	KeyDecimalSeparator   = "decimal_separator"
	KeyThousandSeparator  = "thousand_separator"
	KeyTaxRate            = "tax_rate"
	KeyTaxOnShipping      = "tax_on_shipping"
	KeyShippingRate       = "shipping_rate"
	KeyClampNegativePrice = "clamp_negative_price"
)

// Settings is the typed snapshot handed to pricing code.
type Settings struct {
	Currency           pricing.CurrencySettings `json:"currency"`
	Tax                pricing.TaxSettings      `json:"tax"`
	ShippingRate       pricing.Money            `json:"shippingRate"`
	ClampNegativePrice bool                     `json:"clampNegativePrice"`
}

// Policy returns the discount policy configured for the store.
func (s Settings) Policy() pricing.DiscountPolicy {
	return pricing.DiscountPolicy{ClampNegativePrice: s.ClampNegativePrice}
}

// Defaults returns the settings used when the table is empty.
func Defaults() Settings {
	return Settings{
		Currency:     pricing.DefaultCurrencySettings(),
		Tax:          pricing.TaxSettings{Rate: decimal.Zero},
		ShippingRate: pricing.Zero(),
	}
}

// Store reads raw key/value rows.
type Store interface {
	Load(ctx context.Context) (map[string]string, error)
}

// Provider resolves settings, consulting the cache before the store.
type Provider struct {
	Store    Store
	Cache    *cache.JSON
	Defaults Settings
	Logger   zerolog.Logger
}

// Get returns the current settings. Cache failures are logged and bypassed.
func (p *Provider) Get(ctx context.Context) (Settings, error) {
	if p == nil || p.Store == nil {
		return Settings{}, errors.New("settings provider not configured")
	}
	var cached Settings
	hit, err := p.Cache.Get(ctx, cache.KeySettings, &cached)
	if err != nil {
		p.Logger.Warn().Err(err).Msg("settings_cache_read_failed")
	}
	if hit {
		return cached, nil
	}

	values, err := p.Store.Load(ctx)
	if err != nil {
		return Settings{}, err
	}
	resolved := Parse(values, p.defaults(), p.Logger)
	if err := p.Cache.Set(ctx, cache.KeySettings, resolved); err != nil {
		p.Logger.Warn().Err(err).Msg("settings_cache_write_failed")
	}
	return resolved, nil
}

// Invalidate drops the cached snapshot so the next Get reloads from the store.
func (p *Provider) Invalidate(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.Cache.Delete(ctx, cache.KeySettings)
}

func (p *Provider) defaults() Settings {
	if p.Defaults.Currency.Code == "" {
		return Defaults()
	}
	return p.Defaults
}

// Parse applies raw values over defaults. Unparseable values keep the default
// and are logged; monetary values go through ParseMoneyOrZero.
func Parse(values map[string]string, defaults Settings, logger zerolog.Logger) Settings {
	out := defaults
	cs := &out.Currency
	setString(values, KeyCurrencyCode, func(v string) { cs.Code = strings.ToUpper(v) })
	setString(values, KeyCurrencySymbol, func(v string) { cs.Symbol = v })
	setString(values, KeyCurrencyPosition, func(v string) { cs.Position = pricing.CurrencyPosition(strings.ToLower(v)) })
	setString(values, KeyCurrencyFormat, func(v string) { cs.Format = pricing.CurrencyFormat(strings.ToLower(v)) })
	if v, ok := values[KeyDecimalSeparator]; ok && v != "" {
		cs.DecimalSeparator = v
	}
	if v, ok := values[KeyThousandSeparator]; ok {
		cs.ThousandSeparator = v
	}
	if err := cs.Validate(); err != nil {
		logger.Warn().Err(err).Msg("settings_currency_invalid")
		out.Currency = defaults.Currency
	}

	if raw := strings.TrimSpace(values[KeyTaxRate]); raw != "" {
		rate, err := decimal.NewFromString(raw)
		switch {
		case err != nil:
			logger.Warn().Str("value", raw).Msg("settings_tax_rate_invalid")
		case rate.IsNegative():
			logger.Warn().Str("value", raw).Msg("settings_tax_rate_negative")
		default:
			out.Tax.Rate = rate
		}
	}
	if raw, ok := values[KeyTaxOnShipping]; ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			out.Tax.AppliesToShipping = b
		}
	}
	if raw, ok := values[KeyShippingRate]; ok {
		out.ShippingRate = pricing.ParseMoneyOrZero(raw)
	}
	if raw, ok := values[KeyClampNegativePrice]; ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			out.ClampNegativePrice = b
		}
	}
	return out
}

func setString(values map[string]string, key string, apply func(string)) {
	if v := strings.TrimSpace(values[key]); v != "" {
		apply(v)
	}
}
