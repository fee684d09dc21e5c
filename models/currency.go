package models

import "github.com/shopspring/decimal"

// Supported currency codes.
const (
	CurrencyINR = "inr"
	CurrencyUSD = "usd"

	// ReferenceCurrency is the currency order totals are audited in.
	ReferenceCurrency = CurrencyINR
)

// SupportedCurrencies lists every currency prices are kept in.
var SupportedCurrencies = []string{CurrencyINR, CurrencyUSD}

// IsSupportedCurrency reports whether code is a supported currency.
func IsSupportedCurrency(code string) bool {
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// Both supported currencies have two decimal places.
const minorUnitExp = 2

// ToMajor converts minor units (paise, cents) to a decimal major amount.
func ToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorUnitExp)
}

// ToMinor rounds a major amount half away from zero to minor units.
func ToMinor(major decimal.Decimal) int64 {
	return major.Shift(minorUnitExp).Round(0).IntPart()
}

type ConversionResult struct {
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	FromCurrency    string          `json:"from_currency"`
	ToCurrency      string          `json:"to_currency"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
}

type ConvertRequest struct {
	Amount decimal.Decimal `json:"amount"`
	From   string          `json:"from" binding:"required"`
	To     string          `json:"to" binding:"required"`
}

type SetRateRequest struct {
	From string          `json:"from" binding:"required"`
	To   string          `json:"to" binding:"required"`
	Rate decimal.Decimal `json:"rate"`
}
