package memory

import (
	"encoding/json"
	"fmt"

	"jobsdashboard/pkg/domain"
)

// Snapshot captures a point-in-time clone of the store state, keyed by bucket.
type Snapshot struct {
	States      map[string]domain.State      `json:"states"`
	Cities      map[string]domain.City       `json:"cities"`
	Companies   map[string]domain.Company    `json:"companies"`
	Departments map[string]domain.Department `json:"departments"`
	Skills      map[string]domain.Skill      `json:"skills"`
	Banks       map[string]domain.Bank       `json:"banks"`
	Shifts      map[string]domain.Shift      `json:"shifts"`
	Jobs        map[string]domain.Job        `json:"jobs"`
	Onboarding  map[string]domain.Onboarding `json:"onboarding"`
}

// BucketName returns the persisted bucket name for kind.
func BucketName(kind domain.EntityType) string { return kind.Resource() }

// Buckets lists persisted bucket names in dependency order.
func Buckets() []string {
	kinds := domain.EntityTypes()
	out := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, kind.Resource())
	}
	return out
}

// Len returns the total number of records in the snapshot.
func (s Snapshot) Len() int {
	return len(s.States) + len(s.Cities) + len(s.Companies) + len(s.Departments) +
		len(s.Skills) + len(s.Banks) + len(s.Shifts) + len(s.Jobs) + len(s.Onboarding)
}

// EncodeBucket marshals a single bucket to JSON.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	var v any
	switch bucket {
	case "states":
		v = s.States
	case "cities":
		v = s.Cities
	case "companies":
		v = s.Companies
	case "departments":
		v = s.Departments
	case "skills":
		v = s.Skills
	case "banks":
		v = s.Banks
	case "shifts":
		v = s.Shifts
	case "jobs":
		v = s.Jobs
	case "onboarding":
		v = s.Onboarding
	default:
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", bucket, err)
	}
	return data, nil
}

// DecodeBucket unmarshals payload into the named bucket. Unknown buckets are
// ignored so older databases with retired buckets still load.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case "states":
		target = &s.States
	case "cities":
		target = &s.Cities
	case "companies":
		target = &s.Companies
	case "departments":
		target = &s.Departments
	case "skills":
		target = &s.Skills
	case "banks":
		target = &s.Banks
	case "shifts":
		target = &s.Shifts
	case "jobs":
		target = &s.Jobs
	case "onboarding":
		target = &s.Onboarding
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

func snapshotFromState(state memoryState) Snapshot {
	return Snapshot{
		States:      exportBucket[domain.State](state),
		Cities:      exportBucket[domain.City](state),
		Companies:   exportBucket[domain.Company](state),
		Departments: exportBucket[domain.Department](state),
		Skills:      exportBucket[domain.Skill](state),
		Banks:       exportBucket[domain.Bank](state),
		Shifts:      exportBucket[domain.Shift](state),
		Jobs:        exportBucket[domain.Job](state),
		Onboarding:  exportBucket[domain.Onboarding](state),
	}
}

func stateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	importBucket(state, s.States)
	importBucket(state, s.Cities)
	importBucket(state, s.Companies)
	importBucket(state, s.Departments)
	importBucket(state, s.Skills)
	importBucket(state, s.Banks)
	importBucket(state, s.Shifts)
	importBucket(state, s.Jobs)
	importBucket(state, s.Onboarding)
	return state
}

func exportBucket[T domain.Entity[T]](state memoryState) map[string]T {
	var zero T
	bucket := state[zero.Kind()]
	out := make(map[string]T, len(bucket))
	for id, rec := range bucket {
		if typed, ok := rec.(T); ok {
			out[id] = domain.Clone(typed)
		}
	}
	return out
}

// importBucket copies records into state. Map keys win over embedded ids so a
// hand-edited snapshot cannot file a record under the wrong key.
func importBucket[T domain.Entity[T]](state memoryState, in map[string]T) {
	for id, rec := range in {
		if id == "" {
			continue
		}
		state[rec.Kind()][id] = domain.WithID(rec, id)
	}
}
