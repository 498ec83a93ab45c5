package doa

import (
	"errors"
	"fmt"

	"github.com/rjboer/GoDOA/internal/geometry"
	"github.com/rjboer/GoDOA/internal/linalg"
)

var (
	// ErrConfiguration is the geometry package's configuration error, so a
	// bad element list or scan grid matches regardless of where it was found.
	ErrConfiguration = geometry.ErrConfiguration
	// ErrDimensionMismatch is returned when the channel count of a block or
	// side-information matrix disagrees with the manifold's element count.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInsufficientSamples is returned when a block has fewer than two snapshots.
	ErrInsufficientSamples = errors.New("insufficient samples")
	// ErrSingularMatrix is returned when a matrix that must be inverted is
	// singular or too ill-conditioned.
	ErrSingularMatrix = errors.New("singular matrix")
	// ErrAllZeroSpectrum is returned when a spectrum cannot be normalized
	// because every value is zero.
	ErrAllZeroSpectrum = errors.New("all-zero spectrum")
	// ErrInvalidSourceCount is returned when the assumed number of sources is
	// not strictly between zero and the element count.
	ErrInvalidSourceCount = errors.New("invalid source count")
	// ErrNonFiniteSpectrum is returned when a spectrum contains NaN or Inf.
	ErrNonFiniteSpectrum = errors.New("non-finite spectrum")
	// ErrNegativeSpectrum is returned when a raw spectrum holds negative
	// power beyond rounding, which means the covariance or side-information
	// matrix was not positive semi-definite.
	ErrNegativeSpectrum = errors.New("negative spectrum")
)

// translate maps backend failures onto this package's errors.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, linalg.ErrSingular):
		return fmt.Errorf("%s: %w: %v", op, ErrSingularMatrix, err)
	case errors.Is(err, linalg.ErrShape):
		return fmt.Errorf("%s: %w: %v", op, ErrDimensionMismatch, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
