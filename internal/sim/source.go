// Package sim supplies sample blocks to the estimation pipeline: a plane-wave
// simulator and a CSV replay source.
package sim

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Source delivers fixed-size blocks of real samples, one row per snapshot and
// one column per channel, in element order.
type Source interface {
	Read(ctx context.Context) (*mat.Dense, error)
	Channels() int
	Close() error
}
