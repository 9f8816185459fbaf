package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"jobsdashboard/pkg/domain"
)

type seeded struct {
	state   domain.State
	city    domain.City
	company domain.Company
	skill   domain.Skill
	bank    domain.Bank
	job     domain.Job
}

func seedBoard(t *testing.T, svc *Service) seeded {
	t.Helper()
	ctx := context.Background()
	var s seeded
	var err error
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	s.state, _, err = Create(ctx, svc, domain.State{Name: "Texas"})
	must(err)
	s.city, _, err = Create(ctx, svc, domain.City{Name: "Austin", StateID: s.state.ID})
	must(err)
	s.company, _, err = Create(ctx, svc, domain.Company{Name: "Acme", CityID: s.city.ID, StateID: s.state.ID})
	must(err)
	s.skill, _, err = Create(ctx, svc, domain.Skill{Name: "Welding"})
	must(err)
	s.bank, _, err = Create(ctx, svc, domain.Bank{Name: "First"})
	must(err)
	s.job, _, err = Create(ctx, svc, domain.Job{Title: "Welder", CompanyID: s.company.ID, CityID: s.city.ID, SkillIDs: []string{s.skill.ID}})
	must(err)
	return s
}

func requireBlocked(t *testing.T, err error, rule, fragment string) {
	t.Helper()
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	for _, v := range violation.Result.Violations {
		if v.Rule == rule && strings.Contains(v.Message, fragment) {
			return
		}
	}
	t.Fatalf("expected %s violation containing %q, got %+v", rule, fragment, violation.Result.Violations)
}

func TestReferenceIntegrityBlocksMissingTargets(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	s := seedBoard(t, svc)

	cases := []struct {
		name     string
		create   func() error
		fragment string
	}{
		{"city without state", func() error {
			_, _, err := Create(ctx, svc, domain.City{Name: "Nowhere", StateID: "missing"})
			return err
		}, "missing state missing"},
		{"job without company", func() error {
			_, _, err := Create(ctx, svc, domain.Job{Title: "Orphan"})
			return err
		}, "requires companyId"},
		{"job with unknown skill", func() error {
			_, _, err := Create(ctx, svc, domain.Job{Title: "Welder II", CompanyID: s.company.ID, SkillIDs: []string{"ghost"}})
			return err
		}, "missing skill ghost"},
		{"onboarding with unknown bank", func() error {
			_, _, err := Create(ctx, svc, domain.Onboarding{UserID: "u1", FirstName: "Ada", BankID: "ghost"})
			return err
		}, "missing bank ghost"},
		{"company with unknown city", func() error {
			_, _, err := Replace(ctx, svc, s.company.ID, domain.Company{Name: "Acme", CityID: "ghost"})
			return err
		}, "missing city ghost"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requireBlocked(t, tc.create(), "reference_integrity", tc.fragment)
		})
	}
}

func TestReferenceIntegrityBlocksDeletingReferencedRecords(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	s := seedBoard(t, svc)

	_, err := Delete[domain.Company](ctx, svc, s.company.ID)
	requireBlocked(t, err, "reference_integrity", "still referenced by job "+s.job.ID)

	_, err = Delete[domain.State](ctx, svc, s.state.ID)
	requireBlocked(t, err, "reference_integrity", "still referenced by city "+s.city.ID)

	_, err = Delete[domain.Skill](ctx, svc, s.skill.ID)
	requireBlocked(t, err, "reference_integrity", "still referenced by job")

	if _, err := Delete[domain.Job](ctx, svc, s.job.ID); err != nil {
		t.Fatalf("delete job: %v", err)
	}
	if _, err := Delete[domain.Company](ctx, svc, s.company.ID); err != nil {
		t.Fatalf("company should be deletable once unreferenced: %v", err)
	}
	if _, err := Delete[domain.Bank](ctx, svc, s.bank.ID); err != nil {
		t.Fatalf("unreferenced bank delete: %v", err)
	}
}

func TestOnboardingAcceptsKnownReferences(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	s := seedBoard(t, svc)
	profile, _, err := Create(ctx, svc, domain.Onboarding{UserID: "u1", FirstName: "Ada", LastName: "Lovelace", BankID: s.bank.ID, SkillIDs: []string{s.skill.ID}})
	if err != nil {
		t.Fatalf("create onboarding: %v", err)
	}
	if profile.DisplayName() != "Ada Lovelace" {
		t.Fatalf("unexpected display name %q", profile.DisplayName())
	}
	_, err = Delete[domain.Bank](ctx, svc, s.bank.ID)
	requireBlocked(t, err, "reference_integrity", "onboarding "+profile.ID)
}

func TestDefaultRulesEngineOrder(t *testing.T) {
	names := make([]string, 0, 3)
	for _, rule := range NewDefaultRulesEngine().Rules() {
		names = append(names, rule.Name())
	}
	if strings.Join(names, ",") != "name_required,reference_integrity,duplicate_name" {
		t.Fatalf("unexpected rule order %v", names)
	}
	if len(NewRulesEngine().Rules()) != 0 {
		t.Fatalf("expected empty engine")
	}
}
