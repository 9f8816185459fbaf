package domain

// Record is the read-only surface every stored entity exposes.
type Record interface {
	Kind() EntityType
	RecordID() string
	DisplayName() string
	Meta() Base
}

// Entity is the constraint used by generic stores, caches and coordinators.
// WithBase returns a copy of the value carrying the supplied common fields; it
// must not alias mutable state of the receiver.
type Entity[T any] interface {
	Record
	WithBase(Base) T
}

// WithID returns a copy of v carrying id.
func WithID[T Entity[T]](v T, id string) T {
	b := v.Meta()
	b.ID = id
	return v.WithBase(b)
}

// Clone returns a deep copy of v.
func Clone[T Entity[T]](v T) T {
	return v.WithBase(v.Meta())
}

// Compile-time contract assertions for every entity.
var (
	_ Entity[Company]    = Company{}
	_ Entity[Department] = Department{}
	_ Entity[Skill]      = Skill{}
	_ Entity[Bank]       = Bank{}
	_ Entity[State]      = State{}
	_ Entity[City]       = City{}
	_ Entity[Shift]      = Shift{}
	_ Entity[Job]        = Job{}
	_ Entity[Onboarding] = Onboarding{}
)

// Rebase returns a copy of rec carrying b. Unknown record types are returned
// unchanged.
func Rebase(rec Record, b Base) Record {
	switch v := rec.(type) {
	case Company:
		return v.WithBase(b)
	case Department:
		return v.WithBase(b)
	case Skill:
		return v.WithBase(b)
	case Bank:
		return v.WithBase(b)
	case State:
		return v.WithBase(b)
	case City:
		return v.WithBase(b)
	case Shift:
		return v.WithBase(b)
	case Job:
		return v.WithBase(b)
	case Onboarding:
		return v.WithBase(b)
	default:
		return rec
	}
}

// CloneRecord returns a deep copy of rec.
func CloneRecord(rec Record) Record {
	if rec == nil {
		return nil
	}
	return Rebase(rec, rec.Meta())
}
