// Package integrator advances the network state with a fixed-step ODE solver
// driven by the discrete-event engine, one tick per accepted step.
package integrator

import (
	"github.com/sarchlab/neurosim/rhs"
)

// A Stepper advances x from t to t+dt in place.
type Stepper interface {
	Step(f rhs.Func, x []float64, t, dt float64) error
}

// RK4 is the classic fourth order Runge-Kutta method. Scratch buffers are
// reused between steps, so an RK4 must not be shared by integrators that run
// concurrently.
type RK4 struct {
	k1, k2, k3, k4, tmp []float64
}

// NewRK4 creates an RK4 stepper.
func NewRK4() *RK4 {
	return &RK4{}
}

func (s *RK4) resize(n int) {
	if len(s.tmp) == n {
		return
	}

	s.k1 = make([]float64, n)
	s.k2 = make([]float64, n)
	s.k3 = make([]float64, n)
	s.k4 = make([]float64, n)
	s.tmp = make([]float64, n)
}

// Step performs one RK4 step.
func (s *RK4) Step(f rhs.Func, x []float64, t, dt float64) error {
	s.resize(len(x))

	half := dt / 2

	if err := f.Evaluate(x, t, s.k1); err != nil {
		return err
	}

	axpy(s.tmp, x, half, s.k1)
	if err := f.Evaluate(s.tmp, t+half, s.k2); err != nil {
		return err
	}

	axpy(s.tmp, x, half, s.k2)
	if err := f.Evaluate(s.tmp, t+half, s.k3); err != nil {
		return err
	}

	axpy(s.tmp, x, dt, s.k3)
	if err := f.Evaluate(s.tmp, t+dt, s.k4); err != nil {
		return err
	}

	sixth := dt / 6
	for i := range x {
		x[i] += sixth * (s.k1[i] + 2*s.k2[i] + 2*s.k3[i] + s.k4[i])
	}

	return nil
}

// Euler is the explicit forward Euler method.
type Euler struct {
	dxdt []float64
}

// NewEuler creates an Euler stepper.
func NewEuler() *Euler {
	return &Euler{}
}

// Step performs one Euler step.
func (s *Euler) Step(f rhs.Func, x []float64, t, dt float64) error {
	if len(s.dxdt) != len(x) {
		s.dxdt = make([]float64, len(x))
	}

	if err := f.Evaluate(x, t, s.dxdt); err != nil {
		return err
	}

	axpy(x, x, dt, s.dxdt)

	return nil
}

// axpy sets dst = x + a*y.
func axpy(dst, x []float64, a float64, y []float64) {
	for i := range dst {
		dst[i] = x[i] + a*y[i]
	}
}

// NewStepper creates a stepper by name: "rk4" or "euler".
func NewStepper(method string) (Stepper, bool) {
	switch method {
	case "rk4", "":
		return NewRK4(), true
	case "euler":
		return NewEuler(), true
	default:
		return nil, false
	}
}
