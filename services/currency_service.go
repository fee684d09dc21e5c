package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/models"
	awspkg "github.com/yashrajoria/shopswift-api/pkg/aws"
	"go.uber.org/zap"
)

// DefaultRateTTL is how long a fetched rate is served from the cache.
const DefaultRateTTL = time.Hour

// RateSource is a live exchange-rate feed. Calls are single attempts.
type RateSource interface {
	FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error)
	FetchConvertedAmount(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// CurrencyService converts between the supported currencies.
type CurrencyService interface {
	GetExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error)
	ConvertCurrency(ctx context.Context, amount decimal.Decimal, from, to string) (*models.ConversionResult, error)
	SetExchangeRate(from, to string, rate decimal.Decimal) error
	ClearCache()
	CurrencyForPaymentMethod(method string) (string, error)
	PaymentMethodForCurrency(currency string) (string, error)
}

type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
	seeded    bool
}

type currencyServiceImpl struct {
	source   RateSource
	defaults map[string]decimal.Decimal
	ttl      time.Duration
	metrics  MetricCounter
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedRate
}

// DefaultRates are the fallback rates used when neither the live source nor
// the cache can answer.
func DefaultRates() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		pairKey(models.CurrencyINR, models.CurrencyUSD): decimal.RequireFromString("0.012"),
		pairKey(models.CurrencyUSD, models.CurrencyINR): decimal.RequireFromString("83"),
	}
}

// NewCurrencyService creates a CurrencyService seeded with the default rates.
func NewCurrencyService(source RateSource, ttl time.Duration, metrics MetricCounter, logger *zap.Logger) CurrencyService {
	if ttl <= 0 {
		ttl = DefaultRateTTL
	}
	s := &currencyServiceImpl{
		source:   source,
		defaults: DefaultRates(),
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
	s.ClearCache()
	return s
}

func pairKey(from, to string) string { return from + ":" + to }

func normalizePair(from, to string) (string, string, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if !models.IsSupportedCurrency(from) {
		return "", "", apperrors.Validation("unsupported currency %q", from)
	}
	if !models.IsSupportedCurrency(to) {
		return "", "", apperrors.Validation("unsupported currency %q", to)
	}
	return from, to, nil
}

// GetExchangeRate returns the rate for from→to. A fresh cache entry wins,
// then the live source. When the source fails the stale cache entry is used,
// then the default rate.
func (s *currencyServiceImpl) GetExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from, to, err := normalizePair(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := pairKey(from, to)
	s.mu.RLock()
	entry, cached := s.cache[key]
	s.mu.RUnlock()

	if cached && s.now().Sub(entry.fetchedAt) < s.ttl {
		return entry.rate, nil
	}

	rate, fetchErr := s.fetchRate(ctx, from, to)
	if fetchErr == nil {
		s.store(key, rate)
		return rate, nil
	}

	dims := map[string]string{"Pair": key}
	if cached && !entry.seeded {
		s.logger.Warn("Using stale exchange rate",
			zap.String("pair", key),
			zap.String("rate", entry.rate.String()),
			zap.Time("fetched_at", entry.fetchedAt),
			zap.Error(fetchErr),
		)
		recordCount(ctx, s.metrics, awspkg.MetricExchangeRateFallbacks, dims)
		return entry.rate, nil
	}
	if def, ok := s.defaults[key]; ok {
		s.logger.Warn("Using default exchange rate", zap.String("pair", key), zap.Error(fetchErr))
		recordCount(ctx, s.metrics, awspkg.MetricExchangeRateFallbacks, dims)
		return def, nil
	}
	return decimal.Zero, apperrors.ExternalService("Failed to fetch exchange rate", fetchErr)
}

func (s *currencyServiceImpl) fetchRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if s.source == nil {
		return decimal.Zero, errNoRateSource
	}
	rate, err := s.source.FetchRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	if !rate.IsPositive() {
		return decimal.Zero, errNonPositiveRate
	}
	return rate, nil
}

// ConvertCurrency converts amount (major units). The source is asked to
// convert the exact amount first; the cached rate path is the fallback.
func (s *currencyServiceImpl) ConvertCurrency(ctx context.Context, amount decimal.Decimal, from, to string) (*models.ConversionResult, error) {
	from, to, err := normalizePair(from, to)
	if err != nil {
		return nil, err
	}
	if amount.IsNegative() {
		return nil, apperrors.Validation("amount must not be negative")
	}
	if from == to {
		return &models.ConversionResult{
			OriginalAmount:  amount,
			ConvertedAmount: amount,
			FromCurrency:    from,
			ToCurrency:      to,
			ExchangeRate:    decimal.NewFromInt(1),
		}, nil
	}

	if s.source != nil {
		converted, err := s.source.FetchConvertedAmount(ctx, amount, from, to)
		if err == nil && !converted.IsNegative() {
			rate := decimal.Zero
			if amount.IsPositive() {
				rate = converted.DivRound(amount, 8)
			}
			if !rate.IsPositive() {
				rate, err = s.GetExchangeRate(ctx, from, to)
				if err != nil {
					return nil, err
				}
			}
			return &models.ConversionResult{
				OriginalAmount:  amount,
				ConvertedAmount: converted.Round(2),
				FromCurrency:    from,
				ToCurrency:      to,
				ExchangeRate:    rate,
			}, nil
		}
		s.logger.Debug("Direct conversion failed, using rate", zap.String("pair", pairKey(from, to)), zap.Error(err))
	}

	rate, err := s.GetExchangeRate(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &models.ConversionResult{
		OriginalAmount:  amount,
		ConvertedAmount: amount.Mul(rate).Round(2),
		FromCurrency:    from,
		ToCurrency:      to,
		ExchangeRate:    rate,
	}, nil
}

// SetExchangeRate pins a rate in the cache as if it had just been fetched.
func (s *currencyServiceImpl) SetExchangeRate(from, to string, rate decimal.Decimal) error {
	from, to, err := normalizePair(from, to)
	if err != nil {
		return err
	}
	if !rate.IsPositive() {
		return apperrors.Validation("exchange rate must be greater than zero")
	}
	if from == to {
		return apperrors.Validation("exchange rate for %s to itself is always 1", from)
	}
	s.store(pairKey(from, to), rate)
	return nil
}

func (s *currencyServiceImpl) store(key string, rate decimal.Decimal) {
	s.mu.Lock()
	s.cache[key] = cachedRate{rate: rate, fetchedAt: s.now()}
	s.mu.Unlock()
}

// ClearCache drops every cached rate and reseeds the defaults. Seeded
// entries are never fresh, so the next lookup still tries the source.
func (s *currencyServiceImpl) ClearCache() {
	cache := make(map[string]cachedRate, len(s.defaults))
	for k, v := range s.defaults {
		cache[k] = cachedRate{rate: v, seeded: true}
	}
	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()
}

func (s *currencyServiceImpl) CurrencyForPaymentMethod(method string) (string, error) {
	switch method {
	case models.PaymentMethodRazorpay:
		return models.CurrencyINR, nil
	case models.PaymentMethodPolar:
		return models.CurrencyUSD, nil
	}
	return "", apperrors.Validation("unknown payment method %q", method)
}

func (s *currencyServiceImpl) PaymentMethodForCurrency(currency string) (string, error) {
	switch strings.ToLower(currency) {
	case models.CurrencyINR:
		return models.PaymentMethodRazorpay, nil
	case models.CurrencyUSD:
		return models.PaymentMethodPolar, nil
	}
	return "", apperrors.Validation("no payment method for currency %q", currency)
}
