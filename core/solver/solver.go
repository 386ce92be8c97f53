package solver

import (
	"context"
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Model is a mixed-integer linear program in general form:
//
//	maximize Cᵀx  subject to  G·x ≤ H,  A·x = B,  LB ≤ x ≤ UB
//
// with x_j restricted to integers where Integer[j] is true. A and B may
// be nil when the model has no equality constraints.
type Model struct {
	C       []float64
	G       *mat.Dense
	H       []float64
	A       *mat.Dense
	B       []float64
	LB      []float64
	UB      []float64
	Integer []bool
}

// Status reports how a solve terminated.
type Status int

const (
	StatusOptimal Status = iota
	StatusFeasible
)

// Solution is the result of a successful solve.
type Solution struct {
	X         []float64
	Objective float64
	Status    Status
	SolveTime time.Duration
	Nodes     int
}

var (
	// ErrNoSolution means the model has no feasible point.
	ErrNoSolution = errors.New("solver: no feasible solution")
	// ErrTimeout means the time budget expired before any feasible
	// integer solution was found.
	ErrTimeout = errors.New("solver: time limit exceeded")
)

const (
	simplexTol = 1e-7
	intTol     = 1e-6
)

// relaxSolve points to the LP relaxation routine. It can be overridden
// in tests to simulate solver failures.
var relaxSolve = solveRelaxation

// Solve runs branch-and-bound over the LP relaxation. The search is
// deterministic: nodes are explored depth-first and branching always
// picks the lowest-index fractional integer variable. Solve
// honours both the context deadline and timeLimit; on expiry it returns
// the incumbent with StatusFeasible, or ErrTimeout when none exists.
func Solve(ctx context.Context, m *Model, timeLimit time.Duration) (Solution, error) {
	start := time.Now()
	deadline := start.Add(timeLimit)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	n := len(m.C)
	type node struct {
		lb, ub []float64
	}
	stack := []node{{lb: append([]float64(nil), m.LB...), ub: append([]float64(nil), m.UB...)}}

	best := math.Inf(-1)
	var bestX []float64
	nodes := 0
	timedOut := false

	for len(stack) > 0 {
		if time.Now().After(deadline) || ctx.Err() != nil {
			timedOut = true
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		x, err := relaxSolve(m, nd.lb, nd.ub)
		if err != nil {
			continue // infeasible subproblem
		}
		bound := dot(m.C, x)
		if bound <= best+1e-9 {
			continue
		}

		branch := -1
		frac := intTol
		for j := 0; j < n; j++ {
			if !m.Integer[j] {
				continue
			}
			f := math.Abs(x[j] - math.Round(x[j]))
			if f > frac {
				frac = f
				branch = j
				break // lowest index wins, keeps the search deterministic
			}
		}
		if branch < 0 {
			// Integral solution.
			best = bound
			bestX = roundIntegers(x, m.Integer)
			continue
		}

		down := node{lb: append([]float64(nil), nd.lb...), ub: append([]float64(nil), nd.ub...)}
		up := node{lb: append([]float64(nil), nd.lb...), ub: append([]float64(nil), nd.ub...)}
		down.ub[branch] = math.Floor(x[branch])
		up.lb[branch] = math.Ceil(x[branch])
		// Explore the branch nearest to the fractional value first.
		if x[branch]-math.Floor(x[branch]) < 0.5 {
			stack = append(stack, up, down)
		} else {
			stack = append(stack, down, up)
		}
	}

	if bestX == nil {
		if timedOut {
			return Solution{}, ErrTimeout
		}
		return Solution{}, ErrNoSolution
	}
	status := StatusOptimal
	if timedOut {
		status = StatusFeasible
	}
	return Solution{X: bestX, Objective: best, Status: status, SolveTime: time.Since(start), Nodes: nodes}, nil
}

// solveRelaxation solves the LP relaxation of the model with the node's
// variable bounds folded in as inequality rows, using the simplex
// method. Returns the point in the original variable space.
func solveRelaxation(m *Model, lb, ub []float64) ([]float64, error) {
	n := len(m.C)
	rows := 0
	if m.G != nil {
		rows, _ = m.G.Dims()
	}
	extra := 0
	for j := 0; j < n; j++ {
		if !math.IsInf(ub[j], 1) {
			extra++
		}
		if !math.IsInf(lb[j], -1) {
			extra++
		}
	}

	g := mat.NewDense(rows+extra, n, nil)
	h := make([]float64, rows+extra)
	if m.G != nil {
		for i := 0; i < rows; i++ {
			for j := 0; j < n; j++ {
				g.Set(i, j, m.G.At(i, j))
			}
			h[i] = m.H[i]
		}
	}
	r := rows
	for j := 0; j < n; j++ {
		if !math.IsInf(ub[j], 1) {
			g.Set(r, j, 1)
			h[r] = ub[j]
			r++
		}
		if !math.IsInf(lb[j], -1) {
			g.Set(r, j, -1)
			h[r] = -lb[j]
			r++
		}
	}

	// lp.Simplex minimizes; negate the objective to maximize.
	c := make([]float64, n)
	for j, v := range m.C {
		c[j] = -v
	}

	var a mat.Matrix = m.A
	b := m.B
	if m.A == nil {
		a = mat.NewDense(1, n, nil) // 0 = 0 placeholder row
		b = []float64{0}
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, sol, err := lp.Simplex(cStd, aStd, bStd, simplexTol, nil)
	if err != nil {
		return nil, err
	}
	// Convert splits free variables into x⁺ − x⁻; fold them back.
	x := make([]float64, n)
	for j := 0; j < n; j++ {
		x[j] = sol[j]
		if len(sol) >= 2*n {
			x[j] -= sol[n+j]
		}
	}
	return x, nil
}

func roundIntegers(x []float64, integer []bool) []float64 {
	out := append([]float64(nil), x...)
	for j := range out {
		if integer[j] {
			out[j] = math.Round(out[j])
		}
	}
	return out
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
