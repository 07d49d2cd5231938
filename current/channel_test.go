package current_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/neurosim/current"
	"github.com/sarchlab/neurosim/state"
)

func bindAll(eng *state.Engine, neuronID int, names ...string) {
	for _, n := range names {
		_, err := eng.Bind(neuronID, n)
		Expect(err).NotTo(HaveOccurred())
	}
}

var _ = Describe("Channel", func() {
	var eng *state.Engine

	BeforeEach(func() {
		eng = state.NewEngine()
	})

	Context("leak", func() {
		It("should publish g*(v-e)", func() {
			bindAll(eng, 0, "v")
			Expect(eng.SetParameter(0, "gl", 1)).To(Succeed())
			Expect(eng.SetParameter(0, "el", 0)).To(Succeed())

			leak := current.Leak()
			Expect(leak.Attach(eng, 0)).To(Succeed())
			eng.Seal()

			x := []float64{5}
			dxdt := []float64{0}
			eng.BeginEvaluation()

			i, err := leak.Contribute(x, dxdt, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(i).To(Equal(5.0))
			Expect(eng.Current(0, "I_Leak")).To(Equal(5.0))
			Expect(dxdt).To(Equal([]float64{0}))
		})

		It("should use the default constants", func() {
			bindAll(eng, 0, "v")

			leak := current.Leak()
			Expect(leak.Attach(eng, 0)).To(Succeed())

			eng.BeginEvaluation()
			i, err := leak.Contribute([]float64{10.6}, []float64{0}, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(i).To(BeNumerically("~", 0, 1e-12))
		})
	})

	Context("sodium", func() {
		var na *current.Channel

		BeforeEach(func() {
			bindAll(eng, 3, "v", "m", "h")
			na = current.Sodium()
			Expect(na.Attach(eng, 3)).To(Succeed())
		})

		It("should integrate its gates and publish the current", func() {
			v, m, h := -10.0, 0.05, 0.6
			x := []float64{v, m, h}
			dxdt := make([]float64, 3)

			eng.BeginEvaluation()
			i, err := na.Contribute(x, dxdt, 0, 3)
			Expect(err).NotTo(HaveOccurred())

			alphaM := (2.5 - 0.1*v) / (math.Exp(2.5-0.1*v) - 1)
			betaM := 4 * math.Exp(-v/18)
			alphaH := 0.07 * math.Exp(-v/20)
			betaH := 1 / (math.Exp(3-0.1*v) + 1)

			Expect(dxdt[0]).To(Equal(0.0))
			Expect(dxdt[1]).To(BeNumerically("~",
				alphaM*(1-m)-betaM*m, 1e-12))
			Expect(dxdt[2]).To(BeNumerically("~",
				alphaH*(1-h)-betaH*h, 1e-12))
			Expect(i).To(BeNumerically("~",
				120*math.Pow(m, 3)*h*(v-115), 1e-9))
			Expect(eng.Current(3, "I_Na")).To(Equal(i))
		})

		It("should stay finite at the singular voltage", func() {
			x := []float64{25, 0.5, 0.5}
			dxdt := make([]float64, 3)

			eng.BeginEvaluation()
			_, err := na.Contribute(x, dxdt, 0, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(math.IsNaN(dxdt[1])).To(BeFalse())
			Expect(dxdt[1]).To(BeNumerically("~", 1*(1-0.5)-4*math.Exp(-25.0/18)*0.5, 1e-9))
		})

		It("should fail for a neuron it is not attached to", func() {
			bindAll(eng, 4, "v", "m", "h")

			_, err := na.Contribute(make([]float64, 6), make([]float64, 6), 0, 4)
			Expect(err).To(MatchError(current.ErrNotAttached))
		})
	})

	Context("potassium", func() {
		It("should stay finite at the singular voltage", func() {
			bindAll(eng, 0, "v", "n")
			k := current.Potassium()
			Expect(k.Attach(eng, 0)).To(Succeed())

			dxdt := make([]float64, 2)
			eng.BeginEvaluation()
			i, err := k.Contribute([]float64{10, 0.3}, dxdt, 0, 0)
			Expect(err).NotTo(HaveOccurred())

			alpha := 0.1
			beta := 0.125 * math.Exp(-10.0/80)
			Expect(dxdt[1]).To(BeNumerically("~", alpha*0.7-beta*0.3, 1e-9))
			Expect(i).To(BeNumerically("~", 36*math.Pow(0.3, 4)*22, 1e-9))
		})

		It("should take per-neuron overrides", func() {
			bindAll(eng, 0, "v", "n")
			bindAll(eng, 1, "v", "n")
			Expect(eng.SetParameter(1, "gk", 0)).To(Succeed())

			k := current.Potassium()
			Expect(k.Attach(eng, 0)).To(Succeed())
			Expect(k.Attach(eng, 1)).To(Succeed())

			x := []float64{0, 0.5, 0, 0.5}
			dxdt := make([]float64, 4)
			eng.BeginEvaluation()

			i0, _ := k.Contribute(x, dxdt, 0, 0)
			i1, _ := k.Contribute(x, dxdt, 0, 1)
			Expect(i0).NotTo(BeZero())
			Expect(i1).To(BeZero())
		})
	})

	It("should report a missing gate variable when attaching", func() {
		bindAll(eng, 0, "v", "m")

		err := current.Sodium().Attach(eng, 0)
		Expect(errors.Is(err, state.ErrUnknownVariable)).To(BeTrue())

		var uve *state.UnknownVariableError
		Expect(errors.As(err, &uve)).To(BeTrue())
		Expect(uve.Name).To(Equal("h"))
	})

	It("should support a custom membrane variable", func() {
		bindAll(eng, 0, "vm")
		c := current.MakeChannelBuilder().
			WithName("I_X").
			WithMembrane("vm").
			WithConductance("gx", 2).
			WithReversal("ex", 1).
			Build()
		Expect(c.Attach(eng, 0)).To(Succeed())

		eng.BeginEvaluation()
		Expect(c.Contribute([]float64{3}, []float64{0}, 0, 0)).To(Equal(4.0))
	})

	It("should refuse to build without a name", func() {
		Expect(func() { current.MakeChannelBuilder().Build() }).To(Panic())
	})
})

var _ = Describe("Registry", func() {
	It("should create the standard kinds", func() {
		Expect(current.Kinds()).To(ContainElements("k", "leak", "na"))

		m, err := current.New("na")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Name()).To(Equal("I_Na"))
	})

	It("should create independent instances", func() {
		a, _ := current.New("leak")
		b, _ := current.New("leak")
		Expect(a).NotTo(BeIdenticalTo(b))
	})

	It("should fail on an unknown kind", func() {
		_, err := current.New("ca")
		Expect(err).To(HaveOccurred())
	})

	It("should register new kinds once", func() {
		current.Register("test-zero", func() current.Model {
			return current.MakeChannelBuilder().WithName("I_Zero").Build()
		})

		m, err := current.New("test-zero")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Name()).To(Equal("I_Zero"))

		Expect(func() {
			current.Register("test-zero", nil)
		}).To(Panic())
	})
})
