package core

import "jobsdashboard/pkg/domain"

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NameRequiredRule())
	engine.Register(ReferenceIntegrityRule())
	engine.Register(DuplicateNameRule())
	return engine
}

// changedRecords returns the post-change records of created or updated entities.
func changedRecords(changes []domain.Change) []domain.Record {
	out := make([]domain.Record, 0, len(changes))
	for _, change := range changes {
		if change.Action == domain.ActionDelete || change.After == nil {
			continue
		}
		if rec, ok := change.After.(domain.Record); ok {
			out = append(out, rec)
		}
	}
	return out
}
