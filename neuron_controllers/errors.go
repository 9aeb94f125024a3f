package neuron_controllers

import "github.com/pkg/errors"

var (
	// ErrPrecondition is returned when a transition is not valid in the
	// controller's current mode. State is left untouched.
	ErrPrecondition   = errors.New("precondition violated")
	ErrInvalidSetting = errors.New("invalid training setting")
	ErrNoRunStore     = errors.New("no run store configured")
)

func precondition(format string, args ...interface{}) error {
	return errors.Wrapf(ErrPrecondition, format, args...)
}
