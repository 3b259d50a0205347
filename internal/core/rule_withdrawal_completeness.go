package core

import (
	"context"
	"fmt"

	"github.com/Kira-pln/inventario-tubetes/pkg/domain"
)

// NewWithdrawalCompletenessRule returns the rule enforcing that a batch with
// a recorded withdrawal carries the full exit metadata: withdrawn quantity
// and exit humidity.
func NewWithdrawalCompletenessRule() domain.Rule {
	return withdrawalCompletenessRule{}
}

type withdrawalCompletenessRule struct{}

func (withdrawalCompletenessRule) Name() string { return "withdrawal_completeness" }

func (withdrawalCompletenessRule) Evaluate(_ context.Context, view domain.TransactionView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, batch := range view.ListBatches() {
		if batch.WithdrawnAt == nil {
			continue
		}
		if batch.QuantityWithdrawn == nil || batch.ExitHumidity == nil {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "withdrawal_completeness",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("batch %d has a withdrawal timestamp but incomplete exit metadata", batch.ID),
				Entity:   domain.EntityBatch,
				EntityID: fmt.Sprintf("%d", batch.ID),
			})
		}
	}
	return res, nil
}
