package core

import (
	"context"
	"fmt"
	"time"

	"github.com/Kira-pln/inventario-tubetes/pkg/domain"
)

// NewDwellGateRule returns the in-transaction rule enforcing the eligibility
// gate: no withdrawal may be recorded with a timestamp before the batch's
// eligibility instant.
func NewDwellGateRule() domain.Rule {
	return dwellGateRule{}
}

type dwellGateRule struct{}

func (dwellGateRule) Name() string { return "dwell_gate" }

func (dwellGateRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityBatch || change.Action != domain.ActionUpdate {
			continue
		}
		after, ok := change.After.(domain.Batch)
		if !ok {
			continue
		}
		if after.WithdrawnAt == nil {
			continue
		}
		if after.WithdrawnAt.Before(after.EligibleAt) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "dwell_gate",
				Severity: domain.SeverityBlock,
				Message: fmt.Sprintf("batch %d withdrawn at %s before eligibility %s",
					after.ID, after.WithdrawnAt.Format(time.RFC3339), after.EligibleAt.Format(time.RFC3339)),
				Entity:   domain.EntityBatch,
				EntityID: fmt.Sprintf("%d", after.ID),
			})
		}
	}
	return res, nil
}
