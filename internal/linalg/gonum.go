package linalg

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Gonum runs every operation on the real embedding of the complex operands,
//
//	A = Ar + i·Ai  ->  [[Ar, -Ai], [Ai, Ar]],
//
// which lets gonum's real LU and symmetric eigensolver serve complex input.
// A Hermitian A embeds as a real symmetric matrix whose spectrum is that of
// A with every eigenvalue doubled.
type Gonum struct {
	// ConditionLimit overrides DefaultConditionLimit when positive.
	ConditionLimit float64
}

func (g *Gonum) Name() string { return "gonum" }

func (g *Gonum) Mul(a, b *mat.CDense) (*mat.CDense, error) {
	if err := checkMul(a, b); err != nil {
		return nil, err
	}
	var prod mat.Dense
	prod.Mul(embed(a), stack(b))
	return unstack(&prod), nil
}

func (g *Gonum) Solve(a, b *mat.CDense) (*mat.CDense, error) {
	if _, err := checkSolve(a, b); err != nil {
		return nil, err
	}
	lu, err := g.factorize(a)
	if err != nil {
		return nil, err
	}
	var x mat.Dense
	if err := lu.SolveTo(&x, false, stack(b)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return unstack(&x), nil
}

func (g *Gonum) Inverse(a *mat.CDense) (*mat.CDense, error) {
	n, err := checkSquare(a)
	if err != nil {
		return nil, err
	}
	lu, err := g.factorize(a)
	if err != nil {
		return nil, err
	}
	eye := mat.NewDense(2*n, n, nil)
	for i := 0; i < n; i++ {
		eye.Set(i, i, 1)
	}
	var x mat.Dense
	if err := lu.SolveTo(&x, false, eye); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return unstack(&x), nil
}

func (g *Gonum) factorize(a *mat.CDense) (*mat.LU, error) {
	var lu mat.LU
	lu.Factorize(embed(a))
	if cond := lu.Cond(); !conditionOK(cond, g.ConditionLimit) {
		return nil, fmt.Errorf("%w: condition number %g", ErrSingular, cond)
	}
	return &lu, nil
}

func (g *Gonum) EigenHermitian(a *mat.CDense) ([]float64, *mat.CDense, error) {
	n, err := checkSquare(a)
	if err != nil {
		return nil, nil, err
	}
	if !IsHermitian(a, hermitianTol) {
		return nil, nil, ErrNotHermitian
	}
	e := embed(a)
	sym := mat.NewSymDense(2*n, nil)
	for i := 0; i < 2*n; i++ {
		for j := i; j < 2*n; j++ {
			sym.SetSym(i, j, e.At(i, j))
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, nil, ErrNoConvergence
	}
	realVals := es.Values(nil)
	var realVecs mat.Dense
	es.VectorsTo(&realVecs)

	vals, vecs := collapsePairs(realVals, &realVecs, n)
	return vals, vecs, nil
}

// collapsePairs recovers n complex eigenvectors from the 2n real eigenvectors
// of the embedding. Every complex eigenvector u shows up twice, as [Re u; Im u]
// and as the embedding of i·u, so candidates are consumed a pair at a time and
// the one least explained by the vectors already chosen is kept. Leftovers stay
// in the pool for later pairs so degenerate clusters still yield a full basis.
func collapsePairs(realVals []float64, realVecs *mat.Dense, n int) ([]float64, *mat.CDense) {
	type candidate struct {
		z []complex128
	}
	var (
		pool   []candidate
		chosen [][]complex128
		vals   = make([]float64, n)
		out    = mat.NewCDense(n, n, nil)
	)
	for p := 0; p < n; p++ {
		for _, col := range []int{2 * p, 2*p + 1} {
			z := make([]complex128, n)
			for i := 0; i < n; i++ {
				z[i] = complex(realVecs.At(i, col), realVecs.At(n+i, col))
			}
			pool = append(pool, candidate{z: z})
		}

		best, bestNorm := -1, -1.0
		var bestRes []complex128
		for ci, c := range pool {
			res := orthogonalize(c.z, chosen)
			if nrm := norm(res); nrm > bestNorm {
				best, bestNorm, bestRes = ci, nrm, res
			}
		}
		if bestNorm < 1e-12 {
			// Numerically exhausted pool: complete the basis from unit vectors.
			for i := 0; i < n; i++ {
				e := make([]complex128, n)
				e[i] = 1
				res := orthogonalize(e, chosen)
				if nrm := norm(res); nrm > bestNorm {
					bestNorm, bestRes = nrm, res
				}
			}
			best = -1
		}
		scale := complex(1/bestNorm, 0)
		for i := range bestRes {
			bestRes[i] *= scale
		}
		chosen = append(chosen, bestRes)
		if best >= 0 {
			pool = append(pool[:best], pool[best+1:]...)
		}

		vals[p] = (realVals[2*p] + realVals[2*p+1]) / 2
		for i := 0; i < n; i++ {
			out.Set(i, p, bestRes[i])
		}
	}
	return vals, out
}

// orthogonalize removes the components of z along the orthonormal basis,
// twice, and returns the residual as a new slice.
func orthogonalize(z []complex128, basis [][]complex128) []complex128 {
	res := make([]complex128, len(z))
	copy(res, z)
	for pass := 0; pass < 2; pass++ {
		for _, u := range basis {
			var proj complex128
			for i := range u {
				proj += cmplx.Conj(u[i]) * res[i]
			}
			for i := range u {
				res[i] -= proj * u[i]
			}
		}
	}
	return res
}

func norm(z []complex128) float64 {
	var s float64
	for _, v := range z {
		s += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(s)
}

// embed returns the 2r×2c real embedding of a.
func embed(a *mat.CDense) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(2*r, 2*c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			out.Set(i, j, real(v))
			out.Set(i, c+j, -imag(v))
			out.Set(r+i, j, imag(v))
			out.Set(r+i, c+j, real(v))
		}
	}
	return out
}

// stack returns the 2r×c matrix [Re b; Im b].
func stack(b *mat.CDense) *mat.Dense {
	r, c := b.Dims()
	out := mat.NewDense(2*r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := b.At(i, j)
			out.Set(i, j, real(v))
			out.Set(r+i, j, imag(v))
		}
	}
	return out
}

// unstack inverts stack.
func unstack(x *mat.Dense) *mat.CDense {
	r2, c := x.Dims()
	r := r2 / 2
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, complex(x.At(i, j), x.At(r+i, j)))
		}
	}
	return out
}
