package services

import "errors"

var (
	errNoRateSource    = errors.New("no exchange rate source configured")
	errNonPositiveRate = errors.New("rate source returned a non-positive rate")
)
