package core

import (
	"context"
	"fmt"
	"strings"

	"jobsdashboard/pkg/domain"
)

// NameRequiredRule blocks records whose display name is blank.
func NameRequiredRule() domain.Rule {
	return nameRequiredRule{}
}

type nameRequiredRule struct{}

func (nameRequiredRule) Name() string { return "name_required" }

func (nameRequiredRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, rec := range changedRecords(changes) {
		if strings.TrimSpace(rec.DisplayName()) != "" {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "name_required",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("%s %s requires a name", rec.Kind(), rec.RecordID()),
			Entity:   rec.Kind(),
			EntityID: rec.RecordID(),
		})
	}
	return res, nil
}
