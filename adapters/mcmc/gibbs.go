package mcmc

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"solodiary/internal/design"
)

// Vague conjugate priors: flat-ish normal on the fixed effects, weak
// inverse-gamma on every variance component.
const (
	priorBetaPrecision = 1e-6
	priorShape         = 0.001
	priorRate          = 0.001
)

// chainDraws holds one chain's retained fixed-effect draws.
type chainDraws struct {
	Beta [][]float64 // one row per retained iteration
}

// subjectBlock caches the per-subject slices of the design the sampler
// revisits every iteration. Subjects are conditionally independent given
// the fixed effects, so random effects update subject by subject.
type subjectBlock struct {
	rows []int
	z    *mat.Dense // n_s x components
}

// runChain runs one Gibbs chain over the hierarchical linear model
//
//	y = X beta + Z u + e,  u_c ~ N(0, sigma2_c),  e ~ N(0, sigma2_e)
//
// with per-subject block updates for u and conjugate draws for the
// variances. Deterministic given the seed pair.
func runChain(d *design.Matrices, iterations, warmup int, seed1, seed2 uint64) (chainDraws, error) {
	src := rand.New(rand.NewPCG(seed1, seed2))
	stdNormal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	n, p, k, m := d.N, d.P, d.Components, d.NSubjects

	blocks := make([]subjectBlock, m)
	for r := 0; r < n; r++ {
		blocks[d.RowSubject[r]].rows = append(blocks[d.RowSubject[r]].rows, r)
	}
	for s := range blocks {
		ns := len(blocks[s].rows)
		z := mat.NewDense(ns, k, nil)
		for i, r := range blocks[s].rows {
			for c := 0; c < k; c++ {
				z.Set(i, c, d.Z.At(r, c*m+s))
			}
		}
		blocks[s].z = z
	}

	var xtx mat.Dense
	xtx.Mul(d.X.T(), d.X)

	// State.
	beta := make([]float64, p)
	u := mat.NewDense(m, k, nil) // subject x component
	sigma2e := 1.0
	sigma2 := make([]float64, k)
	for c := range sigma2 {
		sigma2[c] = 1.0
	}

	// Scratch.
	yAdj := make([]float64, n)
	draws := chainDraws{}

	for iter := 0; iter < iterations; iter++ {
		// y minus random-effect contribution.
		for r := 0; r < n; r++ {
			yAdj[r] = d.Y.AtVec(r)
		}
		for s := range blocks {
			for i, r := range blocks[s].rows {
				contrib := 0.0
				for c := 0; c < k; c++ {
					contrib += blocks[s].z.At(i, c) * u.At(s, c)
				}
				yAdj[r] -= contrib
			}
		}

		// beta | rest.
		prec := mat.NewSymDense(p, nil)
		for i := 0; i < p; i++ {
			for j := i; j < p; j++ {
				v := xtx.At(i, j) / sigma2e
				if i == j {
					v += priorBetaPrecision
				}
				prec.SetSym(i, j, v)
			}
		}
		rhs := make([]float64, p)
		for r := 0; r < n; r++ {
			for j := 0; j < p; j++ {
				rhs[j] += d.X.At(r, j) * yAdj[r] / sigma2e
			}
		}
		var err error
		beta, err = drawMVN(prec, rhs, stdNormal)
		if err != nil {
			return chainDraws{}, fmt.Errorf("beta draw at iteration %d: %w", iter, err)
		}

		// Residual without random effects, for the u updates.
		for r := 0; r < n; r++ {
			fit := 0.0
			for j := 0; j < p; j++ {
				fit += d.X.At(r, j) * beta[j]
			}
			yAdj[r] = d.Y.AtVec(r) - fit
		}

		// u_s | rest, one small k x k system per subject.
		for s := range blocks {
			ns := len(blocks[s].rows)
			sPrec := mat.NewSymDense(k, nil)
			sRhs := make([]float64, k)
			for c1 := 0; c1 < k; c1++ {
				for c2 := c1; c2 < k; c2++ {
					v := 0.0
					for i := 0; i < ns; i++ {
						v += blocks[s].z.At(i, c1) * blocks[s].z.At(i, c2)
					}
					v /= sigma2e
					if c1 == c2 {
						v += 1.0 / sigma2[c1]
					}
					sPrec.SetSym(c1, c2, v)
				}
				for i, r := range blocks[s].rows {
					sRhs[c1] += blocks[s].z.At(i, c1) * yAdj[r] / sigma2e
				}
			}
			us, err := drawMVN(sPrec, sRhs, stdNormal)
			if err != nil {
				return chainDraws{}, fmt.Errorf("u draw for subject %d at iteration %d: %w", s, iter, err)
			}
			for c := 0; c < k; c++ {
				u.Set(s, c, us[c])
			}
		}

		// sigma2_e | rest.
		rss := 0.0
		for s := range blocks {
			for i, r := range blocks[s].rows {
				contrib := 0.0
				for c := 0; c < k; c++ {
					contrib += blocks[s].z.At(i, c) * u.At(s, c)
				}
				resid := yAdj[r] - contrib
				rss += resid * resid
			}
		}
		sigma2e = drawInverseGamma(priorShape+float64(n)/2, priorRate+rss/2, src)

		// sigma2_c | rest.
		for c := 0; c < k; c++ {
			ss := 0.0
			for s := 0; s < m; s++ {
				ss += u.At(s, c) * u.At(s, c)
			}
			sigma2[c] = drawInverseGamma(priorShape+float64(m)/2, priorRate+ss/2, src)
		}

		if iter >= warmup {
			row := make([]float64, p)
			copy(row, beta)
			draws.Beta = append(draws.Beta, row)
		}
	}

	return draws, nil
}

// drawMVN samples from N(prec^-1 rhs, prec^-1) via the Cholesky factor.
func drawMVN(prec *mat.SymDense, rhs []float64, stdNormal distuv.Normal) ([]float64, error) {
	p := len(rhs)
	var chol mat.Cholesky
	if !chol.Factorize(prec) {
		return nil, fmt.Errorf("precision matrix not positive definite")
	}

	var mean mat.VecDense
	if err := chol.SolveVecTo(&mean, mat.NewVecDense(p, rhs)); err != nil {
		return nil, err
	}

	z := mat.NewVecDense(p, nil)
	for i := 0; i < p; i++ {
		z.SetVec(i, stdNormal.Rand())
	}

	// Solve L' w = z so that w has covariance prec^-1.
	var l mat.TriDense
	chol.LTo(&l)
	var w mat.VecDense
	if err := w.SolveVec(l.T(), z); err != nil {
		return nil, err
	}

	out := make([]float64, p)
	for i := 0; i < p; i++ {
		out[i] = mean.AtVec(i) + w.AtVec(i)
	}
	return out, nil
}

// drawInverseGamma samples an inverse-gamma variate by inverting a gamma
// draw on the precision scale.
func drawInverseGamma(shape, rate float64, src rand.Source) float64 {
	g := distuv.Gamma{Alpha: shape, Beta: rate, Src: src}
	precision := g.Rand()
	if precision <= 0 || math.IsNaN(precision) {
		return math.SmallestNonzeroFloat64
	}
	return 1.0 / precision
}
