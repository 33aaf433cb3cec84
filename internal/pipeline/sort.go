package pipeline

import (
	"sort"
	"time"

	"evboard/internal/model"
)

// Sort returns a stably sorted copy of events.
//
//	newest:  created_at desc
//	soonest: start asc, undated last, ties created_at desc
//	popular: attendee count desc, ties created_at desc
func Sort(events []model.Event, mode model.SortMode, loc *time.Location) []model.Event {
	out := append([]model.Event(nil), events...)
	newer := func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) }

	switch mode {
	case model.SortSoonest:
		type keyed struct {
			ev model.Event
			t  time.Time
			ok bool
		}
		ks := make([]keyed, len(out))
		for i, ev := range out {
			t, ok := StartInstant(ev, loc)
			ks[i] = keyed{ev, t, ok}
		}
		sort.SliceStable(ks, func(i, j int) bool {
			a, b := ks[i], ks[j]
			switch {
			case a.ok != b.ok:
				return a.ok
			case a.ok && !a.t.Equal(b.t):
				return a.t.Before(b.t)
			}
			return a.ev.CreatedAt.After(b.ev.CreatedAt)
		})
		for i := range ks {
			out[i] = ks[i].ev
		}
	case model.SortPopular:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].AttendeeCount != out[j].AttendeeCount {
				return out[i].AttendeeCount > out[j].AttendeeCount
			}
			return newer(i, j)
		})
	default:
		sort.SliceStable(out, newer)
	}
	return out
}
