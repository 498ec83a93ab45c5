package dsp

import (
	"math"
	"math/cmplx"
	"sync"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestCachedAnalytic_Correctness(t *testing.T) {
	size := 512
	cached := NewCachedAnalytic(size)

	samples := make([]float64, size)
	for i := range samples {
		samples[i] = float64(i) / float64(size)
	}

	got := cached.Series(samples)
	want := Analytic(samples)
	if len(got) != len(want) {
		t.Fatalf("length mismatch: %d vs %d", len(got), len(want))
	}
	for i := range got {
		if diff := cmplx.Abs(got[i] - want[i]); diff > 1e-10 {
			t.Errorf("mismatch at index %d: diff=%g", i, diff)
		}
	}
}

func TestCachedAnalytic_UpdateSize(t *testing.T) {
	cached := NewCachedAnalytic(256)
	if cached.Size() != 256 {
		t.Errorf("Initial size mismatch: got %d, want 256", cached.Size())
	}
	cached.UpdateSize(512)
	if cached.Size() != 512 {
		t.Errorf("Updated size mismatch: got %d, want 512", cached.Size())
	}
	if out := cached.Series(make([]float64, 512)); len(out) != 512 {
		t.Errorf("output size after update: got %d, want 512", len(out))
	}
}

func TestCachedAnalytic_WrongSize(t *testing.T) {
	cached := NewCachedAnalytic(512)
	if out := cached.Series(make([]float64, 256)); len(out) != 256 {
		t.Errorf("fallback size: got %d, want 256", len(out))
	}
	if out := cached.Series(nil); len(out) != 0 {
		t.Errorf("empty input: got %d, want 0", len(out))
	}
}

func TestCachedAnalytic_Block(t *testing.T) {
	const rows = 128
	block := mat.NewDense(rows, 3, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < 3; j++ {
			block.Set(i, j, math.Cos(2*math.Pi*8*float64(i)/rows+float64(j)))
		}
	}
	out := NewCachedAnalytic(rows).Block(block)
	r, c := out.Dims()
	if r != rows || c != 3 {
		t.Fatalf("unexpected dims %dx%d", r, c)
	}
	for j := 0; j < 3; j++ {
		for i := 0; i < rows; i++ {
			if m := cmplx.Abs(out.At(i, j)); math.Abs(m-1) > 1e-9 {
				t.Fatalf("(%d,%d): envelope %g, want 1", i, j, m)
			}
		}
	}
}

func TestCachedAnalytic_Concurrent(t *testing.T) {
	cached := NewCachedAnalytic(64)
	x := make([]float64, 64)
	for i := range x {
		x[i] = math.Sin(float64(i))
	}
	want := Analytic(x)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 20; k++ {
				got := cached.Series(x)
				for i := range got {
					if cmplx.Abs(got[i]-want[i]) > 1e-12 {
						t.Errorf("concurrent mismatch at %d", i)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func BenchmarkCachedAnalytic(b *testing.B) {
	size := 4096
	cached := NewCachedAnalytic(size)
	samples := make([]float64, size)
	for i := range samples {
		samples[i] = float64(i % 17)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cached.Series(samples)
	}
}

func BenchmarkNonCachedAnalytic(b *testing.B) {
	size := 4096
	samples := make([]float64, size)
	for i := range samples {
		samples[i] = float64(i % 17)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Analytic(samples)
	}
}
