// internal/domain/phase.go
package domain

import (
	"errors"
	"fmt"
)

// Phase is the lifecycle stage of an asset sale.
type Phase uint8

const (
	PhaseSelling Phase = iota
	PhaseAwaitingGraduation
	PhaseMigrated
)

var ErrInvalidTransition = errors.New("invalid phase transition")

func (p Phase) String() string {
	switch p {
	case PhaseSelling:
		return "selling"
	case PhaseAwaitingGraduation:
		return "awaiting_graduation"
	case PhaseMigrated:
		return "migrated"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// CanTransition reports whether the lifecycle allows moving from p to next.
// Selling may also migrate directly when the target is already met.
func (p Phase) CanTransition(next Phase) bool {
	switch p {
	case PhaseSelling:
		return next == PhaseAwaitingGraduation || next == PhaseMigrated
	case PhaseAwaitingGraduation:
		return next == PhaseMigrated
	default:
		return false
	}
}

// Transition returns next if the move is allowed.
func (p Phase) Transition(next Phase) (Phase, error) {
	if !p.CanTransition(next) {
		return p, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p, next)
	}
	return next, nil
}

// MarshalText implements encoding.TextMarshaler for JSON views.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
