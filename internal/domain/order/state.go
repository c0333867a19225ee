package order

// transitions lists the only legal status moves. Status never goes backwards.
var transitions = map[Status]Status{
	StatusCreated:    StatusPaid,
	StatusPaid:       StatusDispensing,
	StatusDispensing: StatusDispatched,
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	next, ok := transitions[from]
	return ok && next == to
}

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusPaid, StatusDispensing, StatusDispatched:
		return true
	}
	return false
}

// Dispatched reports whether the hardware was already told to dispense.
func (s Status) Dispatched() bool {
	return s == StatusDispensing || s == StatusDispatched
}

// CheckDispatchable applies the dispatch guards to the stored status.
func CheckDispatchable(s Status) error {
	switch {
	case s == StatusPaid:
		return nil
	case s.Dispatched():
		return ErrAlreadyDispatched
	default:
		return ErrPaymentNotConfirmed
	}
}
