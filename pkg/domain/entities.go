// Package domain defines the job-board entities, change records, and rule
// evaluation primitives shared by the backend service and the dashboard client.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records, persistence buckets and cache tags.
const (
	// EntityCompany identifies an employer record.
	EntityCompany EntityType = "company"
	// EntityDepartment identifies a department record.
	EntityDepartment EntityType = "department"
	// EntitySkill identifies a skill record.
	EntitySkill EntityType = "skill"
	// EntityBank identifies a bank record used for payroll onboarding.
	EntityBank EntityType = "bank"
	// EntityJob identifies a job posting.
	EntityJob EntityType = "job"
	// EntityCity identifies a city record.
	EntityCity EntityType = "city"
	// EntityState identifies a state (region) record.
	EntityState EntityType = "state"
	// EntityShift identifies a work shift definition.
	EntityShift EntityType = "shift"
	// EntityOnboarding identifies a user onboarding profile.
	EntityOnboarding EntityType = "onboarding"
)

// EntityTypes lists every supported entity type in bucket order.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityState,
		EntityCity,
		EntityCompany,
		EntityDepartment,
		EntitySkill,
		EntityBank,
		EntityShift,
		EntityJob,
		EntityOnboarding,
	}
}

// Resource returns the plural collection name used for REST paths, cache keys
// and storage buckets.
func (t EntityType) Resource() string {
	switch t {
	case EntityCompany:
		return "companies"
	case EntityCity:
		return "cities"
	case EntityOnboarding:
		return "onboarding"
	case "":
		return ""
	default:
		return string(t) + "s"
	}
}

// TemporaryIDPrefix marks identifiers generated locally for records the server
// has not confirmed yet. Server-assigned identifiers never carry it.
const TemporaryIDPrefix = "temp-"

// IsTemporaryID reports whether id is a locally generated placeholder.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TemporaryIDPrefix)
}

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"_id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordID returns the record identifier.
func (b Base) RecordID() string { return b.ID }

// Meta returns the common record fields.
func (b Base) Meta() Base { return b }

// Company represents an employer posting jobs on the board.
type Company struct {
	Base
	Name    string `json:"name"`
	Address string `json:"address"`
	CityID  string `json:"cityId,omitempty"`
	StateID string `json:"stateId,omitempty"`
}

// Department groups jobs by organisational function.
type Department struct {
	Base
	Name string `json:"name"`
}

// Skill is a competency that jobs require and candidates declare.
type Skill struct {
	Base
	Name string `json:"name"`
}

// Bank is a payroll bank selectable during onboarding.
type Bank struct {
	Base
	Name string `json:"name"`
}

// State is a top-level region.
type State struct {
	Base
	Name string `json:"name"`
}

// City belongs to a state.
type City struct {
	Base
	Name    string `json:"name"`
	StateID string `json:"stateId"`
}

// Shift describes working hours, e.g. "Night" 22:00-06:00.
type Shift struct {
	Base
	Name     string `json:"name"`
	StartsAt string `json:"startsAt,omitempty"`
	EndsAt   string `json:"endsAt,omitempty"`
}

// Job is a posting offered by a company.
type Job struct {
	Base
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	CompanyID    string   `json:"companyId"`
	DepartmentID string   `json:"departmentId,omitempty"`
	CityID       string   `json:"cityId,omitempty"`
	ShiftID      string   `json:"shiftId,omitempty"`
	SkillIDs     []string `json:"skillIds,omitempty"`
	SalaryMin    int      `json:"salaryMin,omitempty"`
	SalaryMax    int      `json:"salaryMax,omitempty"`
}

// Onboarding captures the profile a user completes before reaching the dashboard.
type Onboarding struct {
	Base
	UserID    string   `json:"userId"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	BankID    string   `json:"bankId,omitempty"`
	SkillIDs  []string `json:"skillIds,omitempty"`
	Completed bool     `json:"completed"`
}

// Kind implements Record.
func (Company) Kind() EntityType { return EntityCompany }

// DisplayName implements Record.
func (c Company) DisplayName() string { return c.Name }

// WithBase implements Entity.
func (c Company) WithBase(b Base) Company { c.Base = b; return c }

// Kind implements Record.
func (Department) Kind() EntityType { return EntityDepartment }

// DisplayName implements Record.
func (d Department) DisplayName() string { return d.Name }

// WithBase implements Entity.
func (d Department) WithBase(b Base) Department { d.Base = b; return d }

// Kind implements Record.
func (Skill) Kind() EntityType { return EntitySkill }

// DisplayName implements Record.
func (s Skill) DisplayName() string { return s.Name }

// WithBase implements Entity.
func (s Skill) WithBase(b Base) Skill { s.Base = b; return s }

// Kind implements Record.
func (Bank) Kind() EntityType { return EntityBank }

// DisplayName implements Record.
func (b Bank) DisplayName() string { return b.Name }

// WithBase implements Entity.
func (b Bank) WithBase(base Base) Bank { b.Base = base; return b }

// Kind implements Record.
func (State) Kind() EntityType { return EntityState }

// DisplayName implements Record.
func (s State) DisplayName() string { return s.Name }

// WithBase implements Entity.
func (s State) WithBase(b Base) State { s.Base = b; return s }

// Kind implements Record.
func (City) Kind() EntityType { return EntityCity }

// DisplayName implements Record.
func (c City) DisplayName() string { return c.Name }

// WithBase implements Entity.
func (c City) WithBase(b Base) City { c.Base = b; return c }

// Kind implements Record.
func (Shift) Kind() EntityType { return EntityShift }

// DisplayName implements Record.
func (s Shift) DisplayName() string { return s.Name }

// WithBase implements Entity.
func (s Shift) WithBase(b Base) Shift { s.Base = b; return s }

// Kind implements Record.
func (Job) Kind() EntityType { return EntityJob }

// DisplayName implements Record.
func (j Job) DisplayName() string { return j.Title }

// WithBase implements Entity.
func (j Job) WithBase(b Base) Job {
	j.Base = b
	j.SkillIDs = cloneStrings(j.SkillIDs)
	return j
}

// Kind implements Record.
func (Onboarding) Kind() EntityType { return EntityOnboarding }

// DisplayName implements Record.
func (o Onboarding) DisplayName() string {
	return strings.TrimSpace(o.FirstName + " " + o.LastName)
}

// WithBase implements Entity.
func (o Onboarding) WithBase(b Base) Onboarding {
	o.Base = b
	o.SkillIDs = cloneStrings(o.SkillIDs)
	return o
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)
