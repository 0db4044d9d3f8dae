package domain

// Resolve picks the effective parameters for an owner from the feature
// default (with its rating) and the owner's best assignment, if any.
// Holding an assignment implies activation. An active default wins only
// when its rating is strictly greater than the assignment's.
func Resolve(defaults Params, defaultRating int, assignment *Assignment) Params {
	if assignment == nil {
		return defaults.Clone()
	}
	assigned := assignment.Parameters().WithActive(true)
	if !defaults.Active() {
		return assigned
	}
	if defaultRating > assignment.Rating {
		return defaults.Clone()
	}
	return assigned
}

// Verdict is the outcome of the per-owner reconciliation decision.
type Verdict int

const (
	NoUpdate Verdict = iota
	Update
)

func (v Verdict) String() string {
	if v == Update {
		return "update"
	}
	return "no_update"
}

// Decide reports whether an owner's materialized state must be refreshed
// after the default moved from oldConfig to newDefault. The verdict is
// Update exactly when Resolve before and after the change produce configs
// that are not Equivalent.
func Decide(oldConfig, newDefault Params, oldRating, newRating int, assignment *Assignment) Verdict {
	if oldConfig.Equal(newDefault) {
		return NoUpdate
	}

	if !newDefault.Active() {
		if !oldConfig.Active() {
			return NoUpdate
		}
		if assignment == nil {
			return Update
		}
		if oldRating <= assignment.Rating {
			return NoUpdate
		}
		return Update
	}

	if assignment == nil {
		return Update
	}
	if oldConfig.Active() && assignment.Rating < oldRating {
		return Update
	}
	if assignment.Rating >= newRating {
		return NoUpdate
	}
	return Update
}
