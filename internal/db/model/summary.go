package model

import (
	"fmt"
	"math"

	"github.com/MinterGMT/restaking-research-visuals/internal/concentration"
)

const ConcentrationSummaryCollection = "concentration_summaries"

// ConcentrationSummaryDocument is the persisted per-group concentration
// record. Gini is a pointer because the coefficient is undefined (NaN) for
// empty or zero-stake groups and mongo cannot round-trip NaN meaningfully;
// nil encodes "undefined".
type ConcentrationSummaryDocument struct {
	ID         string   `bson:"_id"` // "<module>:<group>"
	Module     string   `bson:"module"`
	Group      string   `bson:"group"`
	Entities   int      `bson:"entities"`
	TotalStake float64  `bson:"total_stake_usd"`
	HHI        float64  `bson:"hhi"`
	Gini       *float64 `bson:"gini"`
	UpdatedAt  int64    `bson:"updated_at"` // Unix timestamp
}

func SummaryID(module, group string) string {
	return fmt.Sprintf("%s:%s", module, group)
}

// FromSummary converts a computed concentration summary into its document.
func FromSummary(module, group string, s concentration.Summary) *ConcentrationSummaryDocument {
	doc := &ConcentrationSummaryDocument{
		ID:         SummaryID(module, group),
		Module:     module,
		Group:      group,
		Entities:   s.Entities,
		TotalStake: s.TotalStake,
		HHI:        s.HHI,
	}
	if !math.IsNaN(s.Gini) {
		gini := s.Gini
		doc.Gini = &gini
	}
	return doc
}

// ToSummary converts the document back into the computation-layer record,
// restoring the NaN sentinel for an undefined coefficient.
func (d *ConcentrationSummaryDocument) ToSummary() concentration.Summary {
	gini := math.NaN()
	if d.Gini != nil {
		gini = *d.Gini
	}
	return concentration.Summary{
		Entities:   d.Entities,
		TotalStake: d.TotalStake,
		HHI:        d.HHI,
		Gini:       gini,
	}
}
