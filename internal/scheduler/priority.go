package scheduler

import (
	"sort"
	"time"

	"github.com/me/coordinate/internal/registry"
	"github.com/me/coordinate/pkg/model"
)

// sortPending orders a pending snapshot for dispatch consideration:
// highest priority first, oldest CreatedAt first among ties. The
// CreatedAt tiebreak is the anti-starvation guarantee of spec §5 — a
// unit with the same priority as everything else in the queue still
// advances one slot every tick instead of sitting behind a stream of
// newer arrivals forever.
func sortPending(units []model.WorkUnit, now time.Time, reg *registry.Registry) []model.WorkUnit {
	fn := reg.Priority()
	depth := len(units)

	type keyed struct {
		unit model.WorkUnit
		prio float64
	}
	ks := make([]keyed, len(units))
	for i, w := range units {
		p := 0.5
		if fn != nil {
			wait := now.Sub(w.CreatedAt)
			if v, err := fn(w, wait, depth); err == nil {
				p = v
			}
			// A raising callback keeps the neutral-middle default
			// rather than sorting the unit as lowest priority.
		}
		ks[i] = keyed{unit: w, prio: p}
	}

	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].prio != ks[j].prio {
			return ks[i].prio > ks[j].prio
		}
		return ks[i].unit.CreatedAt.Before(ks[j].unit.CreatedAt)
	})

	out := make([]model.WorkUnit, len(ks))
	for i, k := range ks {
		out[i] = k.unit
	}
	return out
}
