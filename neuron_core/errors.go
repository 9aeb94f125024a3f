package neuron_core

import "github.com/pkg/errors"

var (
	ErrDimensionMismatch = errors.New("input width does not match unit width")
	ErrNonFinite         = errors.New("value is not finite")
)

func dimensionMismatch(got int, want int) error {
	return errors.Wrapf(ErrDimensionMismatch, "got %d inputs, unit has %d weights", got, want)
}
