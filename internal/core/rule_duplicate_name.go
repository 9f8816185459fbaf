package core

import (
	"context"
	"fmt"
	"strings"

	"jobsdashboard/pkg/domain"
)

// DuplicateNameRule warns when a created or renamed record shares its display
// name (case-insensitively) with another record of the same kind.
func DuplicateNameRule() domain.Rule {
	return duplicateNameRule{}
}

type duplicateNameRule struct{}

func (duplicateNameRule) Name() string { return "duplicate_name" }

func (duplicateNameRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, rec := range changedRecords(changes) {
		name := strings.TrimSpace(rec.DisplayName())
		if name == "" {
			continue
		}
		for _, other := range view.List(rec.Kind()) {
			if other.RecordID() == rec.RecordID() || !strings.EqualFold(strings.TrimSpace(other.DisplayName()), name) {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "duplicate_name",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("%s name %q is already used by %s", rec.Kind(), name, other.RecordID()),
				Entity:   rec.Kind(),
				EntityID: rec.RecordID(),
			})
			break
		}
	}
	return res, nil
}
