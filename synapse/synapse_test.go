package synapse

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/neurosim/state"
)

func twoNeuronEngine() *state.Engine {
	eng := state.NewEngine()

	_, err := eng.Bind(0, "v")
	Expect(err).NotTo(HaveOccurred())
	_, err = eng.Bind(1, "v")
	Expect(err).NotTo(HaveOccurred())

	return eng
}

var _ = Describe("Synapse", func() {
	var (
		mockCtrl *gomock.Controller
		kinetics *MockKinetics
		eng      *state.Engine
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		kinetics = NewMockKinetics(mockCtrl)
		eng = twoNeuronEngine()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	build := func() *Synapse {
		s, err := MakeBuilder().
			WithID(3).
			WithPre(0, "").
			WithPost(1, "v").
			WithKinetics(kinetics).
			Build()
		Expect(err).NotTo(HaveOccurred())

		return s
	}

	It("should require kinetics", func() {
		_, err := MakeBuilder().WithID(1).Build()
		Expect(err).To(HaveOccurred())
	})

	It("should attach the kinetics to the resolved membranes", func() {
		s := build()
		kinetics.EXPECT().Attach(eng, Connection{
			Synapse: 3, Pre: 0, Post: 1, PreV: 0, PostV: 1,
		}).Return(nil)

		Expect(s.Attach(eng)).To(Succeed())
		Expect(eng.HasSynapse(3)).To(BeTrue())
		Expect(s.Pre()).To(Equal(0))
		Expect(s.Post()).To(Equal(1))
	})

	It("should fail to attach to an unknown neuron", func() {
		s, err := MakeBuilder().
			WithID(3).
			WithPre(0, "v").
			WithPost(7, "v").
			WithKinetics(kinetics).
			Build()
		Expect(err).NotTo(HaveOccurred())

		err = s.Attach(eng)
		Expect(err).To(MatchError(state.ErrUnknownVariable))
		Expect(err.Error()).To(ContainSubstring("post-synaptic"))
	})

	It("should publish the current to the post-synaptic neuron", func() {
		s := build()
		kinetics.EXPECT().Attach(gomock.Any(), gomock.Any()).Return(nil)
		Expect(s.Attach(eng)).To(Succeed())
		eng.Seal()

		x := []float64{70, 5}
		dxdt := []float64{0, 0}
		kinetics.EXPECT().Contribute(x, dxdt, 0.5).Return(1.5, nil)

		eng.BeginEvaluation()
		Expect(s.Evaluate(x, dxdt, 0.5)).To(Succeed())

		Expect(eng.Current(1, "I_syn3")).To(Equal(1.5))
		_, err := eng.Current(0, "I_syn3")
		Expect(err).To(MatchError(state.ErrUncomputedCurrent))
	})

	It("should report kinetics errors", func() {
		s := build()
		kinetics.EXPECT().Attach(gomock.Any(), gomock.Any()).Return(nil)
		Expect(s.Attach(eng)).To(Succeed())

		kinetics.EXPECT().
			Contribute(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(0.0, errors.New("bad"))

		err := s.Evaluate([]float64{0, 0}, []float64{0, 0}, 0)
		Expect(err).To(MatchError(ContainSubstring("synapse 3: bad")))
	})

	It("should refuse to evaluate before it is attached", func() {
		s := build()

		err := s.Evaluate([]float64{0, 0}, []float64{0, 0}, 0)
		Expect(err).To(MatchError(ErrNotAttached))
	})
})

var _ = Describe("Chemical", func() {
	var eng *state.Engine

	BeforeEach(func() {
		eng = twoNeuronEngine()
	})

	attach := func(c *Chemical) {
		Expect(c.Attach(eng, Connection{
			Synapse: 0, Pre: 0, Post: 1, PreV: 0, PostV: 1,
		})).To(Succeed())
	}

	It("should integrate the open fraction and drive the post neuron", func() {
		_, err := eng.BindSynapse(0, OpenFraction)
		Expect(err).NotTo(HaveOccurred())

		for name, v := range map[string]float64{
			"gsyn": 2, "esyn": 10, "alpha": 1, "beta": 1,
			"tmax": 2, "vp": 0, "kp": 1,
		} {
			Expect(eng.SetSynapseParameter(0, name, v)).To(Succeed())
		}

		c := NewChemical()
		attach(c)

		x := []float64{0, 30, 0.25}
		dxdt := []float64{0, 0, 0}

		i, err := c.Contribute(x, dxdt, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Transmitter(0)).To(BeNumerically("~", 1, 1e-12))
		Expect(dxdt[2]).To(BeNumerically("~", 0.5, 1e-12))
		Expect(i).To(BeNumerically("~", 10, 1e-12))
		Expect(dxdt[:2]).To(Equal([]float64{0, 0}))
	})

	It("should release almost nothing at rest", func() {
		_, err := eng.BindSynapse(0, OpenFraction)
		Expect(err).NotTo(HaveOccurred())

		c := NewChemical()
		attach(c)

		Expect(c.Transmitter(0)).To(BeNumerically("<", 1e-5))
		Expect(c.Transmitter(DefaultChemicalVp)).
			To(BeNumerically("~", DefaultChemicalTmax/2, 1e-12))
	})

	It("should need an open fraction variable", func() {
		err := NewChemical().Attach(eng, Connection{Synapse: 0})
		Expect(err).To(MatchError(state.ErrUnknownVariable))
	})

	It("should not contribute before it is attached", func() {
		_, err := NewChemical().Contribute([]float64{0}, []float64{0}, 0)
		Expect(err).To(MatchError(ErrNotAttached))
	})
})

var _ = Describe("Gap", func() {
	It("should pass current down the potential difference", func() {
		eng := twoNeuronEngine()
		Expect(eng.SetSynapseParameter(2, "ggap", 0.5)).To(Succeed())

		g := NewGap()
		Expect(g.Attach(eng, Connection{
			Synapse: 2, Pre: 0, Post: 1, PreV: 0, PostV: 1,
		})).To(Succeed())

		i, err := g.Contribute([]float64{10, 4}, []float64{0, 0}, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(i).To(Equal(-3.0))
	})

	It("should use the default conductance", func() {
		eng := twoNeuronEngine()

		g := NewGap()
		Expect(g.Attach(eng, Connection{PreV: 0, PostV: 1})).To(Succeed())

		i, err := g.Contribute([]float64{0, 10}, []float64{0, 0}, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(i).To(BeNumerically("~", DefaultGapConductance*10, 1e-12))
	})
})

var _ = Describe("Registry", func() {
	It("should create the built-in kinds", func() {
		k, err := New("chemical")
		Expect(err).NotTo(HaveOccurred())
		Expect(k).To(BeAssignableToTypeOf(&Chemical{}))

		k, err = New("gap")
		Expect(err).NotTo(HaveOccurred())
		Expect(k).To(BeAssignableToTypeOf(&Gap{}))

		Expect(Kinds()).To(ContainElements("chemical", "gap"))
	})

	It("should reject unknown kinds", func() {
		_, err := New("nmda")
		Expect(err).To(MatchError(ContainSubstring("unknown synapse kind")))
	})

	It("should reject a kind registered twice", func() {
		Expect(func() {
			Register("gap", func() Kinetics { return NewGap() })
		}).To(Panic())
	})
})
