package service

import (
	"github.com/shopspring/decimal"

	"arb_bot/internal/models"
	"arb_bot/internal/tag"
	"arb_bot/pkg/logger"
)

var one = decimal.NewFromInt(1)

// ConstructionModel turns single-leg signals into symmetric two-leg
// allocation targets. One logical spread decision always becomes two
// physical targets sharing one tag; that is the atomicity contract of
// the whole core.
type ConstructionModel struct{}

func NewConstructionModel() *ConstructionModel {
	return &ConstructionModel{}
}

// CreateTargets allocates 1/N of capital per active signal, scaled by
// the size fraction decoded from its tag. The narrower of the two
// splits governs total allocation, so many simultaneous levels cannot
// over-allocate. A signal whose tag fails to decode is skipped and
// logged; it never aborts the batch.
func (m *ConstructionModel) CreateTargets(active []models.Signal) []models.PortfolioTarget {
	if len(active) == 0 {
		return nil
	}
	base := one.Div(decimal.NewFromInt(int64(len(active))))

	out := make([]models.PortfolioTarget, 0, 2*len(active))
	for _, s := range active {
		leg1, leg2, lp, ok := tag.TryDecode(s.Tag)
		if !ok {
			logger.Error("portfolio: undecodable tag %q on signal %s, skipping", s.Tag, s.Key())
			continue
		}

		var p1 decimal.Decimal
		switch s.Direction {
		case models.DirectionUp:
			p1 = base.Mul(lp.Entry.SizeFraction.Abs())
		case models.DirectionDown:
			p1 = base.Mul(lp.Entry.SizeFraction.Abs()).Neg()
		case models.DirectionFlat:
			p1 = decimal.Zero
		default:
			logger.Error("portfolio: unknown direction %q on signal %s, skipping", s.Direction, s.Key())
			continue
		}

		out = append(out,
			models.PortfolioTarget{InstID: leg1, Percent: p1, Tag: s.Tag},
			models.PortfolioTarget{InstID: leg2, Percent: p1.Neg(), Tag: s.Tag},
		)
	}
	return out
}

// FlattenExpired emits zero-allocation pairs for expired signals whose
// instrument has no remaining active signal. When the tag cannot be
// decoded anymore, only the signal's own instrument is flattened.
func (m *ConstructionModel) FlattenExpired(expired []models.Signal, stillActive func(instID string) bool) []models.PortfolioTarget {
	var out []models.PortfolioTarget
	for _, s := range expired {
		if stillActive(s.InstID) {
			continue
		}

		leg1, leg2, _, ok := tag.TryDecode(s.Tag)
		if !ok {
			logger.Error("portfolio: undecodable tag %q on expired signal %s, flattening its own leg only", s.Tag, s.Key())
			out = append(out, models.PortfolioTarget{InstID: s.InstID, Percent: decimal.Zero, Tag: s.Tag})
			continue
		}

		out = append(out,
			models.PortfolioTarget{InstID: leg1, Percent: decimal.Zero, Tag: s.Tag},
			models.PortfolioTarget{InstID: leg2, Percent: decimal.Zero, Tag: s.Tag},
		)
	}
	return out
}
