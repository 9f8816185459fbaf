package optimistic

import (
	"strconv"
	"sync/atomic"
	"time"

	"jobsdashboard/pkg/domain"
)

// TempIDs generates temporary identifiers of the form
// "temp-<unix-nanos>-<sequence>". The sequence makes ids issued within the same
// clock tick distinct.
type TempIDs struct {
	seq atomic.Uint64
	now func() time.Time
}

// NewTempIDs returns a generator using now as its clock; nil uses time.Now.
func NewTempIDs(now func() time.Time) *TempIDs {
	if now == nil {
		now = time.Now
	}
	return &TempIDs{now: now}
}

// Next returns a fresh temporary identifier.
func (g *TempIDs) Next() string {
	n := g.seq.Add(1)
	return domain.TemporaryIDPrefix + strconv.FormatInt(g.now().UnixNano(), 10) + "-" + strconv.FormatUint(n, 10)
}

var sharedTempIDs = NewTempIDs(nil)
