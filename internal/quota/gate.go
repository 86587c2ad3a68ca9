package quota

import "time"

// Policy fixes the admission rule for one activity kind: at most
// MaxActions inside one Window. The same policy is applied
// independently to spinning and to adding hints.
type Policy struct {
	MaxActions int
	Window     time.Duration
}

// State is the persisted counter pair for one user and one activity
// kind. WindowStart is unix milliseconds, zero when no window is open.
type State struct {
	Count       int
	WindowStart int64
}

// Decision is the outcome of CheckAndAdvance. On admission State holds
// the counter pair the caller must persist; on denial State is the
// post-expiry view and nothing may be persisted.
type Decision struct {
	Allowed        bool
	State          State
	Remaining      int
	CooldownActive bool
	CooldownEndsAt int64 // unix ms, zero when no cooldown applies
}

// Snapshot is a read-only view of quota standing, for the status
// endpoint. It never consumes an action.
type Snapshot struct {
	Count          int
	WindowStart    int64
	Remaining      int
	CooldownActive bool
	CooldownEndsAt int64
}

func (p Policy) windowMillis() int64 {
	return p.Window.Milliseconds()
}

// Expire applies the reset-on-expiry rule: a window older than the
// policy window collapses to the zero state. Evaluated fresh on every
// request, there is no background sweep.
func (p Policy) Expire(st State, now int64) State {
	if st.WindowStart > 0 && now-st.WindowStart >= p.windowMillis() {
		return State{}
	}
	return st
}

// CheckAndAdvance decides whether one more action is permitted at now
// and computes the advanced counter state.
//
// The window stamp is asymmetric on purpose: the first action of a
// fresh window opens it, and the action that exhausts the quota
// re-stamps it, so the cooldown runs from the last permitted action
// while "still within my first N actions" is measured from the first.
func (p Policy) CheckAndAdvance(st State, now int64) Decision {
	st = p.Expire(st, now)

	if st.Count >= p.MaxActions {
		return Decision{
			State:          st,
			CooldownActive: true,
			CooldownEndsAt: st.WindowStart + p.windowMillis(),
		}
	}

	next := State{Count: st.Count + 1, WindowStart: st.WindowStart}
	if (next.Count == 1 && st.WindowStart == 0) || next.Count == p.MaxActions {
		next.WindowStart = now
	}

	decision := Decision{
		Allowed:   true,
		State:     next,
		Remaining: p.MaxActions - next.Count,
	}
	if next.Count >= p.MaxActions {
		decision.CooldownActive = true
		decision.CooldownEndsAt = next.WindowStart + p.windowMillis()
	}
	return decision
}

// Status reports the current standing without consuming an action.
func (p Policy) Status(st State, now int64) Snapshot {
	st = p.Expire(st, now)
	snap := Snapshot{
		Count:       st.Count,
		WindowStart: st.WindowStart,
		Remaining:   p.MaxActions - st.Count,
	}
	if st.Count >= p.MaxActions {
		snap.CooldownActive = true
		snap.CooldownEndsAt = st.WindowStart + p.windowMillis()
	}
	return snap
}
