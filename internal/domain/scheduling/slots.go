package scheduling

import (
	"fmt"
	"sort"
)

// GenerateSlots returns the start times of every whole slot in the window:
// start, start+d, start+2d, ... where each slot [t, t+d) ends no later than
// the window end. A window shorter than one slot yields no slots.
func GenerateSlots(a Availability) ([]TimeOfDay, error) {
	if a.SlotMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot_minutes must be positive, got %d", ErrInvalidRequest, a.SlotMinutes)
	}
	if a.StartTime >= a.EndTime {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrInvalidRequest)
	}

	step := TimeOfDay(a.SlotMinutes)
	slots := make([]TimeOfDay, 0, int(a.EndTime-a.StartTime)/a.SlotMinutes)
	for t := a.StartTime; t+step <= a.EndTime; t += step {
		slots = append(slots, t)
	}
	return slots, nil
}

// freeSlots unions the slots of every window, drops the taken times and
// returns the rest sorted and de-duplicated.
func freeSlots(windows []*Availability, taken []TimeOfDay) ([]TimeOfDay, error) {
	busy := make(map[TimeOfDay]bool, len(taken))
	for _, t := range taken {
		busy[t] = true
	}

	seen := make(map[TimeOfDay]bool)
	out := []TimeOfDay{}
	for _, w := range windows {
		slots, err := GenerateSlots(*w)
		if err != nil {
			return nil, err
		}
		for _, t := range slots {
			if busy[t] || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// offersSlot reports whether t is a slot start in any of the windows.
func offersSlot(windows []*Availability, t TimeOfDay) (bool, error) {
	for _, w := range windows {
		slots, err := GenerateSlots(*w)
		if err != nil {
			return false, err
		}
		for _, s := range slots {
			if s == t {
				return true, nil
			}
		}
	}
	return false, nil
}
