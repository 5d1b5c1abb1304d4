package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is one leg price update from the data feed.
type PriceTick struct {
	InstID string
	Price  decimal.Decimal
	Time   time.Time
}
