package integrator_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/neurosim/integrator"
	"github.com/sarchlab/neurosim/rhs"
)

var decay = rhs.FuncOf(func(x []float64, _ float64, dxdt []float64) error {
	for i := range x {
		dxdt[i] = -x[i]
	}

	return nil
})

func solve(s integrator.Stepper, dt float64) float64 {
	x := []float64{1}
	steps := int(math.Round(1 / dt))

	for k := 0; k < steps; k++ {
		Expect(s.Step(decay, x, float64(k)*dt, dt)).To(Succeed())
	}

	return x[0]
}

var _ = Describe("Steppers", func() {
	It("should integrate exponential decay with RK4", func() {
		Expect(solve(integrator.NewRK4(), 0.01)).
			To(BeNumerically("~", math.Exp(-1), 1e-9))
	})

	It("should converge at fourth order with RK4", func() {
		e1 := math.Abs(solve(integrator.NewRK4(), 0.1) - math.Exp(-1))
		e2 := math.Abs(solve(integrator.NewRK4(), 0.05) - math.Exp(-1))

		Expect(e1 / e2).To(BeNumerically("~", 16, 1.5))
	})

	It("should converge at first order with Euler", func() {
		e1 := math.Abs(solve(integrator.NewEuler(), 0.01) - math.Exp(-1))
		e2 := math.Abs(solve(integrator.NewEuler(), 0.005) - math.Exp(-1))

		Expect(e1 / e2).To(BeNumerically("~", 2, 0.05))
	})

	It("should pass the stage times to the right-hand side", func() {
		var times []float64
		f := rhs.FuncOf(func(_ []float64, t float64, dxdt []float64) error {
			times = append(times, t)
			dxdt[0] = 0
			return nil
		})

		Expect(integrator.NewRK4().Step(f, []float64{0}, 1, 0.5)).To(Succeed())
		Expect(times).To(Equal([]float64{1, 1.25, 1.25, 1.5}))
	})

	It("should create steppers by name", func() {
		s, ok := integrator.NewStepper("rk4")
		Expect(ok).To(BeTrue())
		Expect(s).To(BeAssignableToTypeOf(&integrator.RK4{}))

		s, ok = integrator.NewStepper("euler")
		Expect(ok).To(BeTrue())
		Expect(s).To(BeAssignableToTypeOf(&integrator.Euler{}))

		_, ok = integrator.NewStepper("dopri5")
		Expect(ok).To(BeFalse())
	})
})
