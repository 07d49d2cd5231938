package state_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/neurosim/state"
)

var _ = Describe("Synapse bindings", func() {
	var eng *state.Engine

	BeforeEach(func() {
		eng = state.NewEngine()
		_, err := eng.Bind(0, "v")
		Expect(err).NotTo(HaveOccurred())
		_, err = eng.Bind(1, "v")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should give synapse variables the next dense slots", func() {
		idx, err := eng.BindSynapse(0, "s")
		Expect(err).NotTo(HaveOccurred())
		Expect(idx).To(Equal(2))

		idx, err = eng.BindSynapse(0, "s")
		Expect(err).NotTo(HaveOccurred())
		Expect(idx).To(Equal(2))
		Expect(eng.Len()).To(Equal(3))

		b, err := eng.BindingAt(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Synapse).To(BeTrue())
		Expect(b.SynapseID).To(Equal(0))
		Expect(b.Label()).To(Equal("s0s"))
		Expect(b.Owner()).To(Equal("s0"))
	})

	It("should keep synapse and neuron ids apart", func() {
		_, err := eng.BindSynapse(0, "v")
		Expect(err).NotTo(HaveOccurred())

		n, _ := eng.IndexOf(0, "v")
		s, _ := eng.SynapseIndexOf(0, "v")
		Expect(n).To(Equal(0))
		Expect(s).To(Equal(2))
		Expect(eng.IndicesWithName("v")).To(Equal([]int{0, 1}))
		Expect(eng.SynapseIndicesWithName("v")).To(Equal([]int{2}))
		Expect(eng.HasNeuron(0)).To(BeTrue())
		Expect(eng.Synapses()).To(Equal([]int{0}))
	})

	It("should report unknown synapse variables", func() {
		_, err := eng.SynapseIndexOf(3, "s")
		Expect(errors.Is(err, state.ErrUnknownVariable)).To(BeTrue())

		var uve *state.UnknownVariableError
		Expect(errors.As(err, &uve)).To(BeTrue())
		Expect(uve.Synapse).To(BeTrue())
		Expect(uve.SynapseID).To(Equal(3))
		Expect(err.Error()).To(ContainSubstring("synapse 3"))
	})

	It("should include synapse variables in the initial state", func() {
		_, err := eng.BindSynapse(4, "s")
		Expect(err).NotTo(HaveOccurred())
		Expect(eng.SetSynapseInitialValue(4, "s", 0.25)).To(Succeed())
		Expect(eng.SetSynapseInitialValue(4, "r", 1)).
			To(MatchError(state.ErrUnknownVariable))

		Expect(eng.InitialState()).To(Equal([]float64{0, 0, 0.25}))
	})

	It("should store synapse parameters apart from neuron parameters", func() {
		Expect(eng.SetSynapseParameter(0, "gsyn", 0.5)).To(Succeed())

		v, err := eng.SynapseParameter(0, "gsyn")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(0.5))
		Expect(eng.SynapseParameterOr(0, "esyn", -80)).To(Equal(-80.0))
		Expect(eng.ParameterOr(0, "gsyn", 1)).To(Equal(1.0))
		Expect(eng.SynapsesWithParameter("gsyn")).To(Equal([]int{0}))
		Expect(eng.SynapseParametersOf(0)).
			To(Equal(map[string]float64{"gsyn": 0.5}))
	})

	It("should reject a parameter named like a synapse variable", func() {
		_, err := eng.BindSynapse(0, "s")
		Expect(err).NotTo(HaveOccurred())

		err = eng.SetSynapseParameter(0, "s", 1)
		Expect(err).To(MatchError(state.ErrDuplicateBinding))

		Expect(eng.SetSynapseParameter(0, "g", 1)).To(Succeed())
		_, err = eng.BindSynapse(0, "g")
		Expect(err).To(MatchError(state.ErrDuplicateBinding))
	})

	It("should reject new synapses once sealed", func() {
		eng.Seal()

		_, err := eng.BindSynapse(0, "s")
		Expect(err).To(MatchError(state.ErrSealed))
		Expect(eng.RegisterSynapse(1)).To(MatchError(state.ErrSealed))
		Expect(eng.SetSynapseParameter(0, "g", 1)).
			To(MatchError(state.ErrSealed))
	})
})
