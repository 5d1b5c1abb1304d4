package models

import "github.com/shopspring/decimal"

// PortfolioTarget is a signed percentage allocation for one instrument.
// Targets always come in Tag-sharing pairs; the Tag is the atomicity
// contract between the two legs.
type PortfolioTarget struct {
	InstID  string
	Percent decimal.Decimal
	Tag     string
}

func (t PortfolioTarget) IsFlatten() bool {
	return t.Percent.IsZero()
}
