package lmm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"solodiary/internal/design"
)

// plsState holds the solution of one penalized least-squares evaluation at
// a fixed set of variance ratios.
type plsState struct {
	Deviance float64
	Beta     []float64
	U        []float64
	PWRSS    float64
	Sigma2E  float64
	CovBeta  *mat.SymDense // conditional covariance of beta, already scaled by sigma2e
	OK       bool
}

// maxLogRatio bounds the log variance ratios so the scaled design never
// overflows during line searches.
const maxLogRatio = 12.0

// evalPLS computes the profiled REML deviance at theta, the per-component
// log variance ratios log(sigma2_c / sigma2_e).
//
// The coefficient matrix is ordered random effects first, so the Cholesky
// factor yields both log-determinants the REML criterion needs: the
// leading q x q block for the penalized random-effect system and the
// trailing p x p block for the downdated fixed-effect system.
func evalPLS(d *design.Matrices, theta []float64) plsState {
	n, p := d.N, d.P
	m := d.NSubjects
	q := d.Components * m

	// Scale each component block of Z by lambda_c = exp(theta_c / 2).
	zs := mat.NewDense(n, q, nil)
	for c := 0; c < d.Components; c++ {
		t := theta[c]
		if t > maxLogRatio {
			t = maxLogRatio
		} else if t < -maxLogRatio {
			t = -maxLogRatio
		}
		lambda := math.Exp(t / 2)
		for j := c * m; j < (c+1)*m; j++ {
			for i := 0; i < n; i++ {
				zs.Set(i, j, d.Z.At(i, j)*lambda)
			}
		}
	}

	// C = [[Zs'Zs + I, Zs'X], [X'Zs, X'X]], rhs = [Zs'y; X'y].
	dim := q + p
	c := mat.NewSymDense(dim, nil)
	var ztz, ztx, xtx mat.Dense
	ztz.Mul(zs.T(), zs)
	ztx.Mul(zs.T(), d.X)
	xtx.Mul(d.X.T(), d.X)
	for i := 0; i < q; i++ {
		for j := i; j < q; j++ {
			v := ztz.At(i, j)
			if i == j {
				v += 1.0
			}
			c.SetSym(i, j, v)
		}
		for j := 0; j < p; j++ {
			c.SetSym(i, q+j, ztx.At(i, j))
		}
	}
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			c.SetSym(q+i, q+j, xtx.At(i, j))
		}
	}

	rhs := mat.NewVecDense(dim, nil)
	var zty, xty mat.VecDense
	zty.MulVec(zs.T(), d.Y)
	xty.MulVec(d.X.T(), d.Y)
	for i := 0; i < q; i++ {
		rhs.SetVec(i, zty.AtVec(i))
	}
	for i := 0; i < p; i++ {
		rhs.SetVec(q+i, xty.AtVec(i))
	}

	var chol mat.Cholesky
	if !chol.Factorize(c) {
		return plsState{Deviance: math.Inf(1)}
	}

	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, rhs); err != nil {
		return plsState{Deviance: math.Inf(1)}
	}

	u := make([]float64, q)
	beta := make([]float64, p)
	for i := 0; i < q; i++ {
		u[i] = sol.AtVec(i)
	}
	for i := 0; i < p; i++ {
		beta[i] = sol.AtVec(q + i)
	}

	// Penalized residual sum of squares.
	resid := mat.NewVecDense(n, nil)
	resid.CopyVec(d.Y)
	var xb, zu mat.VecDense
	xb.MulVec(d.X, mat.NewVecDense(p, beta))
	zu.MulVec(zs, mat.NewVecDense(q, u))
	resid.SubVec(resid, &xb)
	resid.SubVec(resid, &zu)
	pwrss := mat.Dot(resid, resid)
	for _, v := range u {
		pwrss += v * v
	}
	if pwrss <= 0 || math.IsNaN(pwrss) {
		return plsState{Deviance: math.Inf(1)}
	}

	var l mat.TriDense
	chol.LTo(&l)
	logdetZ, logdetRX := 0.0, 0.0
	for i := 0; i < q; i++ {
		logdetZ += 2 * math.Log(l.At(i, i))
	}
	for i := q; i < dim; i++ {
		logdetRX += 2 * math.Log(l.At(i, i))
	}

	nmp := float64(n - p)
	sigma2e := pwrss / nmp
	deviance := logdetZ + logdetRX + nmp*(1+math.Log(2*math.Pi*sigma2e))

	// Conditional covariance of beta from the trailing Schur complement:
	// RX'RX = L_XX L_XX', cov(beta) = sigma2e * (RX'RX)^-1.
	lxx := mat.NewTriDense(p, mat.Lower, nil)
	for i := 0; i < p; i++ {
		for j := 0; j <= i; j++ {
			lxx.SetTri(i, j, l.At(q+i, q+j))
		}
	}
	cov := mat.NewSymDense(p, nil)
	for j := 0; j < p; j++ {
		e := mat.NewVecDense(p, nil)
		e.SetVec(j, 1.0)
		var w, col mat.VecDense
		if err := w.SolveVec(lxx, e); err != nil {
			return plsState{Deviance: math.Inf(1)}
		}
		if err := col.SolveVec(lxx.T(), &w); err != nil {
			return plsState{Deviance: math.Inf(1)}
		}
		for i := j; i < p; i++ {
			cov.SetSym(i, j, sigma2e*col.AtVec(i))
		}
	}

	return plsState{
		Deviance: deviance,
		Beta:     beta,
		U:        u,
		PWRSS:    pwrss,
		Sigma2E:  sigma2e,
		CovBeta:  cov,
		OK:       true,
	}
}
