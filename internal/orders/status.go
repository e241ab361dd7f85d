package orders

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusConfirmed Status = "confirmed"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every recognised status in lifecycle order.
var Statuses = []Status{
	StatusPending, StatusPaid, StatusConfirmed, StatusReady, StatusCompleted, StatusCancelled,
}

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusReady: true, StatusCancelled: true},
	StatusReady:     {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validNext[st]; !ok {
		return "", Invalid("status", fmt.Sprintf("unknown status %q", s))
	}
	return st, nil
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether from -> to is a legal move. Staying in the
// same status is always legal and never has side effects.
func CanTransition(from, to Status) bool {
	if from == to {
		_, ok := validNext[from]
		return ok
	}
	return validNext[from][to]
}

// Effect is the stock side effect a transition requires.
type Effect int

const (
	EffectNone Effect = iota
	EffectReduceStock
	EffectRestoreStock
)

func (e Effect) String() string {
	switch e {
	case EffectReduceStock:
		return "reduce_stock"
	case EffectRestoreStock:
		return "restore_stock"
	default:
		return "none"
	}
}

// Plan decides the side effect of moving a transaction from previous to next.
// Stock is reduced exactly when entering paid and restored exactly when leaving
// paid for cancelled; a cancel from any other status has nothing to give back.
func Plan(previous, next Status) (Effect, error) {
	if _, ok := validNext[previous]; !ok {
		return EffectNone, Invalid("status", fmt.Sprintf("unknown status %q", previous))
	}
	if _, ok := validNext[next]; !ok {
		return EffectNone, Invalid("status", fmt.Sprintf("unknown status %q", next))
	}
	if !CanTransition(previous, next) {
		return EffectNone, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, previous, next)
	}
	switch {
	case previous == next:
		return EffectNone, nil
	case next == StatusPaid:
		return EffectReduceStock, nil
	case next == StatusCancelled && previous == StatusPaid:
		return EffectRestoreStock, nil
	}
	return EffectNone, nil
}
