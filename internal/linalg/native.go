package linalg

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const maxJacobiSweeps = 64

// Native works directly in complex arithmetic: cyclic Jacobi rotations for
// Hermitian eigenproblems and LU with partial pivoting for solves. It avoids
// the doubled problem size of the real embedding and serves as an independent
// reference for the Gonum backend.
type Native struct {
	// ConditionLimit overrides DefaultConditionLimit when positive.
	ConditionLimit float64
}

func (nb *Native) Name() string { return "native" }

func (nb *Native) Mul(a, b *mat.CDense) (*mat.CDense, error) {
	if err := checkMul(a, b); err != nil {
		return nil, err
	}
	r, k := a.Dims()
	_, c := b.Dims()
	out := mat.NewCDense(r, c, nil)
	row := make([]complex128, k)
	for i := 0; i < r; i++ {
		for l := 0; l < k; l++ {
			row[l] = a.At(i, l)
		}
		for j := 0; j < c; j++ {
			var sum complex128
			for l, v := range row {
				sum += v * b.At(l, j)
			}
			out.Set(i, j, sum)
		}
	}
	return out, nil
}

func (nb *Native) Solve(a, b *mat.CDense) (*mat.CDense, error) {
	n, err := checkSolve(a, b)
	if err != nil {
		return nil, err
	}
	f, err := nb.factorize(a)
	if err != nil {
		return nil, err
	}
	_, c := b.Dims()
	out := mat.NewCDense(n, c, nil)
	col := make([]complex128, n)
	for j := 0; j < c; j++ {
		for i := 0; i < n; i++ {
			col[i] = b.At(i, j)
		}
		x := f.solve(col)
		for i := 0; i < n; i++ {
			out.Set(i, j, x[i])
		}
	}
	return out, nil
}

func (nb *Native) Inverse(a *mat.CDense) (*mat.CDense, error) {
	n, err := checkSquare(a)
	if err != nil {
		return nil, err
	}
	f, err := nb.factorize(a)
	if err != nil {
		return nil, err
	}
	return f.inverse(n), nil
}

func (nb *Native) factorize(a *mat.CDense) (*luFactors, error) {
	f, err := factorLU(a)
	if err != nil {
		return nil, err
	}
	n, _ := a.Dims()
	cond := norm1(a) * norm1(f.inverse(n))
	if !conditionOK(cond, nb.ConditionLimit) {
		return nil, fmt.Errorf("%w: condition number %g", ErrSingular, cond)
	}
	return f, nil
}

type luFactors struct {
	lu  [][]complex128
	piv []int
}

func factorLU(a *mat.CDense) (*luFactors, error) {
	n, _ := a.Dims()
	lu := make([][]complex128, n)
	for i := range lu {
		lu[i] = make([]complex128, n)
		for j := range lu[i] {
			lu[i][j] = a.At(i, j)
		}
	}
	piv := make([]int, n)
	for i := range piv {
		piv[i] = i
	}
	for k := 0; k < n; k++ {
		p, best := k, cmplx.Abs(lu[k][k])
		for i := k + 1; i < n; i++ {
			if v := cmplx.Abs(lu[i][k]); v > best {
				p, best = i, v
			}
		}
		if best == 0 {
			return nil, fmt.Errorf("%w: zero pivot in column %d", ErrSingular, k)
		}
		lu[k], lu[p] = lu[p], lu[k]
		piv[k], piv[p] = piv[p], piv[k]
		for i := k + 1; i < n; i++ {
			l := lu[i][k] / lu[k][k]
			lu[i][k] = l
			for j := k + 1; j < n; j++ {
				lu[i][j] -= l * lu[k][j]
			}
		}
	}
	return &luFactors{lu: lu, piv: piv}, nil
}

func (f *luFactors) solve(b []complex128) []complex128 {
	n := len(f.piv)
	x := make([]complex128, n)
	for i := 0; i < n; i++ {
		x[i] = b[f.piv[i]]
	}
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			x[i] -= f.lu[i][j] * x[j]
		}
	}
	for i := n - 1; i >= 0; i-- {
		for j := i + 1; j < n; j++ {
			x[i] -= f.lu[i][j] * x[j]
		}
		x[i] /= f.lu[i][i]
	}
	return x
}

func (f *luFactors) inverse(n int) *mat.CDense {
	out := mat.NewCDense(n, n, nil)
	e := make([]complex128, n)
	for j := 0; j < n; j++ {
		for i := range e {
			e[i] = 0
		}
		e[j] = 1
		x := f.solve(e)
		for i := 0; i < n; i++ {
			out.Set(i, j, x[i])
		}
	}
	return out
}

// norm1 is the maximum absolute column sum.
func norm1(a *mat.CDense) float64 {
	r, c := a.Dims()
	var m float64
	for j := 0; j < c; j++ {
		var s float64
		for i := 0; i < r; i++ {
			s += cmplx.Abs(a.At(i, j))
		}
		if math.IsNaN(s) {
			return math.Inf(1)
		}
		if s > m {
			m = s
		}
	}
	return m
}

func (nb *Native) EigenHermitian(a *mat.CDense) ([]float64, *mat.CDense, error) {
	n, err := checkSquare(a)
	if err != nil {
		return nil, nil, err
	}
	if !IsHermitian(a, hermitianTol) {
		return nil, nil, ErrNotHermitian
	}

	m := make([][]complex128, n)
	v := make([][]complex128, n)
	var fro float64
	for i := 0; i < n; i++ {
		m[i] = make([]complex128, n)
		v[i] = make([]complex128, n)
		v[i][i] = 1
		for j := 0; j < n; j++ {
			m[i][j] = a.At(i, j)
			fro += real(m[i][j])*real(m[i][j]) + imag(m[i][j])*imag(m[i][j])
		}
		m[i][i] = complex(real(m[i][i]), 0)
	}
	tol := 1e-30 * fro

	converged := false
	for sweep := 0; sweep < maxJacobiSweeps; sweep++ {
		var off float64
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				off += real(m[p][q])*real(m[p][q]) + imag(m[p][q])*imag(m[p][q])
			}
		}
		if off <= tol {
			converged = true
			break
		}
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				rotate(m, v, p, q)
			}
		}
	}
	if !converged {
		return nil, nil, ErrNoConvergence
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return real(m[order[i]][order[i]]) < real(m[order[j]][order[j]])
	})
	vals := make([]float64, n)
	vecs := mat.NewCDense(n, n, nil)
	for col, idx := range order {
		vals[col] = real(m[idx][idx])
		for i := 0; i < n; i++ {
			vecs.Set(i, col, v[i][idx])
		}
	}
	return vals, vecs, nil
}

// rotate applies the unitary rotation U that zeroes m[p][q]:
// m <- Uᴴ m U and v <- v U. U first turns the (p,q) entry real with a phase
// on column q, then applies the classic real Jacobi rotation.
func rotate(m, v [][]complex128, p, q int) {
	b := m[p][q]
	mag := cmplx.Abs(b)
	if mag == 0 {
		return
	}
	phase := cmplx.Conj(b / complex(mag, 0))
	alpha, gamma := real(m[p][p]), real(m[q][q])
	theta := (gamma - alpha) / (2 * mag)
	t := 1 / (math.Abs(theta) + math.Sqrt(theta*theta+1))
	if theta < 0 {
		t = -t
	}
	c := 1 / math.Sqrt(t*t+1)
	s := t * c

	upp, upq := complex(c, 0), complex(s, 0)
	uqp, uqq := complex(-s, 0)*phase, complex(c, 0)*phase

	n := len(m)
	for k := 0; k < n; k++ {
		kp, kq := m[k][p], m[k][q]
		m[k][p] = kp*upp + kq*uqp
		m[k][q] = kp*upq + kq*uqq
	}
	for k := 0; k < n; k++ {
		pk, qk := m[p][k], m[q][k]
		m[p][k] = cmplx.Conj(upp)*pk + cmplx.Conj(uqp)*qk
		m[q][k] = cmplx.Conj(upq)*pk + cmplx.Conj(uqq)*qk
	}
	for k := 0; k < n; k++ {
		kp, kq := v[k][p], v[k][q]
		v[k][p] = kp*upp + kq*uqp
		v[k][q] = kp*upq + kq*uqq
	}
	m[p][q], m[q][p] = 0, 0
	m[p][p] = complex(real(m[p][p]), 0)
	m[q][q] = complex(real(m[q][q]), 0)
}
