package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// ExchangeRateAPI fetches live rates from an exchangerate-api.com style
// pair endpoint. Each call is a single attempt.
type ExchangeRateAPI struct {
	client *resty.Client
	apiKey string
}

type pairResponse struct {
	Result           string          `json:"result"`
	ErrorType        string          `json:"error-type"`
	ConversionRate   decimal.Decimal `json:"conversion_rate"`
	ConversionResult decimal.Decimal `json:"conversion_result"`
}

func NewExchangeRateAPI(baseURL, apiKey string, timeout time.Duration) *ExchangeRateAPI {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &ExchangeRateAPI{client: client, apiKey: apiKey}
}

// FetchRate returns how many units of to one unit of from buys.
func (a *ExchangeRateAPI) FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	out, err := a.pair(ctx, "/v6/{key}/pair/{from}/{to}", map[string]string{
		"from": strings.ToUpper(from),
		"to":   strings.ToUpper(to),
	})
	if err != nil {
		return decimal.Zero, err
	}
	if !out.ConversionRate.IsPositive() {
		return decimal.Zero, fmt.Errorf("exchange rate api returned non-positive rate %s", out.ConversionRate)
	}
	return out.ConversionRate, nil
}

// FetchConvertedAmount asks the source to convert amount directly.
func (a *ExchangeRateAPI) FetchConvertedAmount(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	out, err := a.pair(ctx, "/v6/{key}/pair/{from}/{to}/{amount}", map[string]string{
		"from":   strings.ToUpper(from),
		"to":     strings.ToUpper(to),
		"amount": amount.String(),
	})
	if err != nil {
		return decimal.Zero, err
	}
	return out.ConversionResult, nil
}

func (a *ExchangeRateAPI) pair(ctx context.Context, path string, params map[string]string) (*pairResponse, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("exchange rate api: %w", ErrNotConfigured)
	}

	var out pairResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("key", a.apiKey).
		SetPathParams(params).
		SetResult(&out).
		SetError(&out).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("exchange rate request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{Provider: "exchangerate", StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 256)}
	}
	if out.Result != "success" {
		return nil, fmt.Errorf("exchange rate api error: %s", out.ErrorType)
	}
	return &out, nil
}
