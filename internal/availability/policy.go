package availability

import (
	"fmt"
	"strings"

	"trainerslot/internal/domain"
)

// Policy picks one trainer among candidates that are already known to be free.
type Policy interface {
	Name() string
	Select(candidates []domain.Trainer, ix *Index, w domain.TimeWindow) (domain.Trainer, bool)
}

// FirstFree picks the first candidate in roster order, which is the lowest trainer id.
type FirstFree struct{}

func (FirstFree) Name() string { return "first_free" }

func (FirstFree) Select(candidates []domain.Trainer, _ *Index, _ domain.TimeWindow) (domain.Trainer, bool) {
	if len(candidates) == 0 {
		return domain.Trainer{}, false
	}
	return candidates[0], true
}

// LeastLoaded picks the candidate with the fewest bookings on the window's day.
// Ties keep roster order.
type LeastLoaded struct{}

func (LeastLoaded) Name() string { return "least_loaded" }

func (LeastLoaded) Select(candidates []domain.Trainer, ix *Index, w domain.TimeWindow) (domain.Trainer, bool) {
	if len(candidates) == 0 {
		return domain.Trainer{}, false
	}
	best := candidates[0]
	bestLoad := ix.Load(best.ID, w)
	for _, c := range candidates[1:] {
		if load := ix.Load(c.ID, w); load < bestLoad {
			best, bestLoad = c, load
		}
	}
	return best, true
}

func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "first_free":
		return FirstFree{}, nil
	case "least_loaded":
		return LeastLoaded{}, nil
	default:
		return nil, fmt.Errorf("unknown tie-break policy %q", name)
	}
}
