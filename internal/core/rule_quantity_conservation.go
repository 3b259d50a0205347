package core

import (
	"context"
	"fmt"

	"github.com/Kira-pln/inventario-tubetes/pkg/domain"
)

// NewQuantityConservationRule returns the rule enforcing that no batch ever
// carries a negative quantity on hand.
func NewQuantityConservationRule() domain.Rule {
	return quantityConservationRule{}
}

type quantityConservationRule struct{}

func (quantityConservationRule) Name() string { return "quantity_conservation" }

func (quantityConservationRule) Evaluate(_ context.Context, view domain.TransactionView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, batch := range view.ListBatches() {
		if batch.QuantityOnHand < 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "quantity_conservation",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("batch %d (%s) has negative quantity on hand: %d", batch.ID, batch.TypeName, batch.QuantityOnHand),
				Entity:   domain.EntityBatch,
				EntityID: fmt.Sprintf("%d", batch.ID),
			})
		}
	}
	return res, nil
}
