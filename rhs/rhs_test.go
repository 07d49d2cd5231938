package rhs

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/neurosim/current"
	"github.com/sarchlab/neurosim/neuron"
	"github.com/sarchlab/neurosim/sim"
	"github.com/sarchlab/neurosim/state"
	"github.com/sarchlab/neurosim/synapse"
)

var _ = Describe("Driver", func() {
	var (
		mockCtrl *gomock.Controller
		eng      *state.Engine
		n0, n1   *MockNeuron
		driver   *Driver
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		eng = state.NewEngine()
		for _, id := range []int{0, 1} {
			_, err := eng.Bind(id, "v")
			Expect(err).NotTo(HaveOccurred())
		}

		n0 = NewMockNeuron(mockCtrl)
		n0.EXPECT().ID().Return(0).AnyTimes()
		n1 = NewMockNeuron(mockCtrl)
		n1.EXPECT().ID().Return(1).AnyTimes()

		var err error
		driver, err = MakeBuilder().
			WithStateEngine(eng).
			WithNeurons(n0, n1).
			Build()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should seal the state engine", func() {
		Expect(eng.Sealed()).To(BeTrue())
	})

	It("should clear dxdt and evaluate every neuron once in order", func() {
		x := []float64{1, 2}
		dxdt := []float64{7, 7}

		gomock.InOrder(
			n0.EXPECT().Evaluate(x, dxdt, 0.25).
				DoAndReturn(func(_, d []float64, _ float64) error {
					Expect(d).To(Equal([]float64{0, 0}))
					d[0] = 3
					return nil
				}),
			n1.EXPECT().Evaluate(x, dxdt, 0.25).
				DoAndReturn(func(_, d []float64, _ float64) error {
					d[1] = 4
					return nil
				}),
		)

		Expect(driver.Evaluate(x, 0.25, dxdt)).To(Succeed())
		Expect(dxdt).To(Equal([]float64{3, 4}))
	})

	It("should start a new cache evaluation each time", func() {
		n0.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Times(2)
		n1.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Times(2)

		before := eng.Epoch()
		_, err := driver.Derivative([]float64{0, 0}, 0)
		Expect(err).NotTo(HaveOccurred())
		_, err = driver.Derivative([]float64{0, 0}, 0.05)
		Expect(err).NotTo(HaveOccurred())

		Expect(eng.Epoch()).To(Equal(before + 2))
	})

	It("should stop at the first failing neuron", func() {
		n0.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(errors.New("diverged"))

		_, err := driver.Derivative([]float64{0, 0}, 0)
		Expect(err).To(MatchError("diverged"))
	})

	It("should reject a state of the wrong size", func() {
		err := driver.Evaluate([]float64{0}, 0, []float64{0})
		Expect(err).To(HaveOccurred())
	})

	It("should invoke hooks around the evaluation", func() {
		hook := NewMockHook(mockCtrl)
		driver.AcceptHook(hook)

		n0.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any())
		n1.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any())

		var positions []*sim.HookPos
		hook.EXPECT().Func(gomock.Any()).
			Do(func(ctx sim.HookCtx) {
				positions = append(positions, ctx.Pos)
				Expect(ctx.Domain).To(BeIdenticalTo(driver))
				Expect(ctx.Detail.(Evaluation).Time).To(Equal(1.5))
			}).
			Times(2)

		_, err := driver.Derivative([]float64{0, 0}, 1.5)
		Expect(err).NotTo(HaveOccurred())
		Expect(positions).To(Equal([]*sim.HookPos{
			HookPosBeforeEvaluation, HookPosAfterEvaluation,
		}))
	})
})

var _ = Describe("Driver with synapses", func() {
	var (
		mockCtrl *gomock.Controller
		eng      *state.Engine
		n0, s0   *MockNeuron
		s1       *MockNeuron
		driver   *Driver
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		eng = state.NewEngine()
		_, err := eng.Bind(0, "v")
		Expect(err).NotTo(HaveOccurred())

		n0 = NewMockNeuron(mockCtrl)
		n0.EXPECT().ID().Return(0).AnyTimes()
		s0 = NewMockNeuron(mockCtrl)
		s0.EXPECT().ID().Return(0).AnyTimes()
		s1 = NewMockNeuron(mockCtrl)
		s1.EXPECT().ID().Return(1).AnyTimes()

		driver, err = MakeBuilder().
			WithStateEngine(eng).
			WithNeurons(n0).
			WithSynapses(s0, s1).
			Build()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should evaluate the synapses in order before the neurons", func() {
		var calls []string

		call := func(name string) func(_, _ []float64, _ float64) error {
			return func(_, _ []float64, _ float64) error {
				calls = append(calls, name)
				return nil
			}
		}

		s0.EXPECT().Evaluate(gomock.Any(), gomock.Any(), 0.5).DoAndReturn(call("s0"))
		s1.EXPECT().Evaluate(gomock.Any(), gomock.Any(), 0.5).DoAndReturn(call("s1"))
		n0.EXPECT().Evaluate(gomock.Any(), gomock.Any(), 0.5).DoAndReturn(call("n0"))

		_, err := driver.Derivative([]float64{0}, 0.5)
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal([]string{"s0", "s1", "n0"}))
		Expect(driver.Synapses()).To(Equal(2))
	})

	It("should not evaluate the neurons after a synapse fails", func() {
		s0.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(errors.New("saturated"))

		_, err := driver.Derivative([]float64{0}, 0)
		Expect(err).To(MatchError("saturated"))
	})

	It("should reject a synapse added twice", func() {
		eng := state.NewEngine()

		_, err := MakeBuilder().WithStateEngine(eng).WithSynapses(s1, s1).Build()
		Expect(err).To(MatchError(ContainSubstring("synapse 1")))
	})
})

var _ = Describe("Builder", func() {
	var mockCtrl *gomock.Controller

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
	})

	It("should require a state engine", func() {
		_, err := MakeBuilder().Build()
		Expect(err).To(HaveOccurred())
	})

	It("should reject a neuron added twice", func() {
		eng := state.NewEngine()
		_, _ = eng.Bind(0, "v")

		n := NewMockNeuron(mockCtrl)
		n.EXPECT().ID().Return(0).AnyTimes()

		_, err := MakeBuilder().WithStateEngine(eng).WithNeurons(n, n).Build()
		Expect(err).To(HaveOccurred())
	})

	It("should reject a neuron without variables", func() {
		eng := state.NewEngine()

		n := NewMockNeuron(mockCtrl)
		n.EXPECT().ID().Return(3).AnyTimes()

		_, err := MakeBuilder().WithStateEngine(eng).WithNeurons(n).Build()
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Parallel driver", func() {
	build := func(parallel bool) (*Driver, []float64) {
		eng := state.NewEngine()
		var neurons []Neuron

		for id := 0; id < 16; id++ {
			_, err := eng.Bind(id, "v")
			Expect(err).NotTo(HaveOccurred())
			Expect(eng.SetInitialValue(id, "v", float64(id))).To(Succeed())
			Expect(eng.SetParameter(id, "gl", 0.1*float64(id+1))).To(Succeed())

			n, err := neuron.MakeBuilder().
				WithID(id).
				WithCurrents(current.Leak()).
				Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(n.Attach(eng)).To(Succeed())

			neurons = append(neurons, n)
		}

		b := MakeBuilder().WithStateEngine(eng).WithNeurons(neurons...)
		if parallel {
			b = b.WithParallelNeurons(4)
		}

		d, err := b.Build()
		Expect(err).NotTo(HaveOccurred())

		return d, eng.InitialState()
	}

	It("should produce the serial result", func() {
		serial, x := build(false)
		parallel, _ := build(true)

		want, err := serial.Derivative(x, 0)
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 10; i++ {
			got, err := parallel.Derivative(x, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		}
	})
})

var _ = Describe("Coupled network", func() {
	build := func(parallel bool) (*Driver, []float64) {
		eng := state.NewEngine()
		var neurons []Neuron

		for id := 0; id < 8; id++ {
			_, err := eng.Bind(id, "v")
			Expect(err).NotTo(HaveOccurred())
			Expect(eng.SetInitialValue(id, "v", 10*float64(id))).To(Succeed())
		}

		inputs := map[int][]string{}
		var synapses []Synapse

		for id := 0; id < 8; id++ {
			_, err := eng.BindSynapse(id, synapse.OpenFraction)
			Expect(err).NotTo(HaveOccurred())
			Expect(eng.SetSynapseInitialValue(id, synapse.OpenFraction, 0.1)).
				To(Succeed())

			post := (id + 1) % 8
			s, err := synapse.MakeBuilder().
				WithID(id).
				WithPre(id, "v").
				WithPost(post, "v").
				WithKinetics(synapse.NewChemical()).
				Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Attach(eng)).To(Succeed())

			inputs[post] = append(inputs[post], s.CurrentName())
			synapses = append(synapses, s)
		}

		for id := 0; id < 8; id++ {
			n, err := neuron.MakeBuilder().
				WithID(id).
				WithCurrents(current.Leak()).
				WithInputs(inputs[id]...).
				Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(n.Attach(eng)).To(Succeed())

			neurons = append(neurons, n)
		}

		b := MakeBuilder().
			WithStateEngine(eng).
			WithNeurons(neurons...).
			WithSynapses(synapses...)
		if parallel {
			b = b.WithParallelNeurons(3)
		}

		d, err := b.Build()
		Expect(err).NotTo(HaveOccurred())

		return d, eng.InitialState()
	}

	It("should let synaptic currents reach the post-synaptic neurons", func() {
		d, x := build(false)

		dxdt, err := d.Derivative(x, 0)
		Expect(err).NotTo(HaveOccurred())

		// Neuron 1 at v=10 leaks towards 10.6 and is pulled towards the
		// excitatory reversal by the synapse from neuron 0.
		leak := -0.3 * (10 - 10.6)
		syn := -synapse.DefaultChemicalGsyn * 0.1 *
			(10 - synapse.DefaultChemicalEsyn)
		Expect(dxdt[1]).To(BeNumerically("~", leak+syn, 1e-12))
	})

	It("should produce the serial result in parallel", func() {
		serial, x := build(false)
		parallel, _ := build(true)

		want, err := serial.Derivative(x, 0)
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 10; i++ {
			got, err := parallel.Derivative(x, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		}
	})
})

var _ = Describe("FuncOf", func() {
	It("should adapt a function", func() {
		var f Func = FuncOf(func(x []float64, t float64, dxdt []float64) error {
			dxdt[0] = -x[0] * t
			return nil
		})

		dxdt := []float64{0}
		Expect(f.Evaluate([]float64{2}, 3, dxdt)).To(Succeed())
		Expect(dxdt[0]).To(Equal(-6.0))
	})
})
