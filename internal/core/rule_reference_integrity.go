package core

import (
	"context"
	"fmt"

	"jobsdashboard/pkg/domain"
)

// ReferenceIntegrityRule blocks records that point at missing entities and
// deletions that would leave such dangling references behind.
func ReferenceIntegrityRule() domain.Rule {
	return referenceIntegrityRule{}
}

type referenceIntegrityRule struct{}

type reference struct {
	field    string
	kind     domain.EntityType
	id       string
	required bool
}

func (referenceIntegrityRule) Name() string { return "reference_integrity" }

func (referenceIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, rec := range changedRecords(changes) {
		for _, ref := range referencesOf(rec) {
			if ref.id == "" {
				if ref.required {
					res.Violations = append(res.Violations, integrityViolation(rec, fmt.Sprintf("%s %s requires %s", rec.Kind(), rec.RecordID(), ref.field)))
				}
				continue
			}
			if _, ok := view.Find(ref.kind, ref.id); !ok {
				res.Violations = append(res.Violations, integrityViolation(rec, fmt.Sprintf("%s %s references missing %s %s", rec.Kind(), rec.RecordID(), ref.kind, ref.id)))
			}
		}
	}

	for _, change := range changes {
		if change.Action != domain.ActionDelete {
			continue
		}
		deleted, ok := change.Before.(domain.Record)
		if !ok {
			continue
		}
		for _, kind := range referencingKinds[deleted.Kind()] {
			for _, rec := range view.List(kind) {
				for _, ref := range referencesOf(rec) {
					if ref.kind == deleted.Kind() && ref.id == deleted.RecordID() {
						res.Violations = append(res.Violations, integrityViolation(deleted, fmt.Sprintf("%s %s is still referenced by %s %s", deleted.Kind(), deleted.RecordID(), rec.Kind(), rec.RecordID())))
					}
				}
			}
		}
	}
	return res, nil
}

// referencingKinds maps a kind to the kinds whose records may point at it.
var referencingKinds = map[domain.EntityType][]domain.EntityType{
	domain.EntityState:      {domain.EntityCity, domain.EntityCompany},
	domain.EntityCity:       {domain.EntityCompany, domain.EntityJob},
	domain.EntityCompany:    {domain.EntityJob},
	domain.EntityDepartment: {domain.EntityJob},
	domain.EntityShift:      {domain.EntityJob},
	domain.EntitySkill:      {domain.EntityJob, domain.EntityOnboarding},
	domain.EntityBank:       {domain.EntityOnboarding},
}

func referencesOf(rec domain.Record) []reference {
	switch v := rec.(type) {
	case domain.Company:
		return []reference{
			{field: "cityId", kind: domain.EntityCity, id: v.CityID},
			{field: "stateId", kind: domain.EntityState, id: v.StateID},
		}
	case domain.City:
		return []reference{{field: "stateId", kind: domain.EntityState, id: v.StateID}}
	case domain.Job:
		refs := []reference{
			{field: "companyId", kind: domain.EntityCompany, id: v.CompanyID, required: true},
			{field: "departmentId", kind: domain.EntityDepartment, id: v.DepartmentID},
			{field: "cityId", kind: domain.EntityCity, id: v.CityID},
			{field: "shiftId", kind: domain.EntityShift, id: v.ShiftID},
		}
		for _, id := range v.SkillIDs {
			refs = append(refs, reference{field: "skillIds", kind: domain.EntitySkill, id: id, required: true})
		}
		return refs
	case domain.Onboarding:
		refs := []reference{{field: "bankId", kind: domain.EntityBank, id: v.BankID}}
		for _, id := range v.SkillIDs {
			refs = append(refs, reference{field: "skillIds", kind: domain.EntitySkill, id: id, required: true})
		}
		return refs
	default:
		return nil
	}
}

func integrityViolation(rec domain.Record, message string) domain.Violation {
	return domain.Violation{
		Rule:     "reference_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   rec.Kind(),
		EntityID: rec.RecordID(),
	}
}
