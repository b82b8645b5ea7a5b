package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency describes rounding for a currency code
type Currency struct {
	Code          string `json:"code"`
	DecimalPlaces int32  `json:"decimal_places"`
}

// CurrencyRate is the number of currency units per one unit of the
// company's base currency, effective from EffectiveDate
type CurrencyRate struct {
	ID            int64           `json:"id"`
	CurrencyCode  string          `json:"currency_code"`
	CompanyID     *int64          `json:"company_id,omitempty"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate time.Time       `json:"effective_date"`
}
