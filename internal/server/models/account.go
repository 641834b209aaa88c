package models

// AccountStatus is derived from the reset_users and inactive_users marker rows.
type AccountStatus int

const (
	StatusNormal AccountStatus = iota
	StatusInactive
	// StatusPendingReset wins over StatusInactive when both markers exist.
	StatusPendingReset
)

func (s AccountStatus) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusPendingReset:
		return "pending_reset"
	default:
		return "normal"
	}
}

// AccountState is everything login needs to know about a user's markers,
// read in one round trip.
type AccountState struct {
	Status AccountStatus
	Admin  bool
}

// NewAccountState applies the marker precedence.
func NewAccountState(pendingReset, inactive, admin bool) AccountState {
	st := AccountState{Status: StatusNormal, Admin: admin}
	switch {
	case pendingReset:
		st.Status = StatusPendingReset
	case inactive:
		st.Status = StatusInactive
	}
	return st
}
