package observer

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/neurosim/integrator"
	"github.com/sarchlab/neurosim/sim"
	"github.com/sarchlab/neurosim/state"
)

func twoNeurons() *state.Engine {
	eng := state.NewEngine()
	for _, id := range []int{4, 1} {
		_, err := eng.Bind(id, "v")
		Expect(err).NotTo(HaveOccurred())
		_, err = eng.Bind(id, "m")
		Expect(err).NotTo(HaveOccurred())
	}

	Expect(eng.SetParameter(1, "gna", 120)).To(Succeed())

	return eng
}

var _ = Describe("CSVWriter", func() {
	var (
		eng *state.Engine
		buf *bytes.Buffer
		w   *CSVWriter
	)

	BeforeEach(func() {
		eng = twoNeurons()
		buf = new(bytes.Buffer)
		w = NewCSVWriter(eng, buf)
	})

	It("should write the header and one row per step", func() {
		Expect(w.Watch("v")).To(Succeed())

		Expect(w.Observe(integrator.Snapshot{Time: 0, State: []float64{1, 2, 3, 4}})).
			To(Succeed())
		Expect(w.Observe(integrator.Snapshot{Step: 1, Time: 0.05, State: []float64{-1.5, 0, 7, 0}})).
			To(Succeed())

		Expect(buf.String()).To(Equal("time,n4v,n1v\n0,1,3\n0.05,-1.5,7\n"))
	})

	It("should write watched parameters", func() {
		Expect(w.WatchNeuron(1, "m")).To(Succeed())
		Expect(w.Watch("gna")).To(Succeed())

		Expect(w.Observe(integrator.Snapshot{State: []float64{0, 0, 0, 0.25}})).
			To(Succeed())

		Expect(buf.String()).To(Equal("time,n1m,n1gna\n0,0.25,120\n"))
	})

	It("should support a custom delimiter without header", func() {
		w.SetDelimiter('\t')
		w.SetHeader(false)
		Expect(w.Watch("m")).To(Succeed())

		Expect(w.Observe(integrator.Snapshot{Time: 1, State: []float64{0, 2, 0, 3}})).
			To(Succeed())

		Expect(buf.String()).To(Equal("1\t2\t3\n"))
	})

	It("should flush once every step interval", func() {
		w.SetStepInterval(3)
		w.SetHeader(false)
		Expect(w.WatchNeuron(4, "v")).To(Succeed())

		x := []float64{1, 0, 0, 0}
		Expect(w.Observe(integrator.Snapshot{Time: 0, State: x})).To(Succeed())
		Expect(w.Observe(integrator.Snapshot{Time: 1, State: x})).To(Succeed())
		Expect(buf.Len()).To(BeZero())

		Expect(w.Observe(integrator.Snapshot{Time: 2, State: x})).To(Succeed())
		Expect(buf.String()).To(Equal("0,1\n1,1\n2,1\n"))

		Expect(w.Observe(integrator.Snapshot{Time: 3, State: x})).To(Succeed())
		Expect(w.Flush()).To(Succeed())
		Expect(buf.String()).To(HaveSuffix("3,1\n"))
	})

	It("should write synapse columns after neuron columns", func() {
		_, err := eng.BindSynapse(0, "v")
		Expect(err).NotTo(HaveOccurred())
		_, err = eng.BindSynapse(2, "s")
		Expect(err).NotTo(HaveOccurred())
		Expect(eng.SetSynapseParameter(2, "gsyn", 0.5)).To(Succeed())

		Expect(w.Watch("v")).To(Succeed())
		Expect(w.WatchSynapse(2, "s")).To(Succeed())
		Expect(w.Watch("gsyn")).To(Succeed())

		x := []float64{1, 0, 3, 0, 9, 0.25}
		Expect(w.Observe(integrator.Snapshot{State: x})).To(Succeed())

		Expect(buf.String()).To(Equal(
			"time,n4v,n1v,s0v,s2s,s2gsyn\n0,1,3,9,0.25,0.5\n"))
	})

	It("should fail to watch an unknown synapse variable", func() {
		err := w.WatchSynapse(0, "s")
		Expect(err).To(MatchError(state.ErrUnknownVariable))
	})

	It("should fail to watch an unknown name", func() {
		err := w.Watch("ca")
		Expect(err).To(MatchError(state.ErrUnknownVariable))

		err = w.WatchNeuron(4, "gna")
		Expect(err).To(MatchError(state.ErrUnknownVariable))
	})
})

var _ = Describe("Recorder", func() {
	var (
		mockCtrl *gomock.Controller
		rec      *MockDataRecorder
		eng      *state.Engine
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		rec = NewMockDataRecorder(mockCtrl)
		eng = twoNeurons()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should insert a row per watched value", func() {
		rec.EXPECT().CreateTable("trace", Sample{}).Return(nil)
		r, err := NewRecorder(eng, rec, "trace")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Watch("v")).To(Succeed())

		gomock.InOrder(
			rec.EXPECT().InsertData("trace", Sample{
				Step: 2, Time: 0.1, Owner: "n4", Variable: "v", Value: 1,
			}),
			rec.EXPECT().InsertData("trace", Sample{
				Step: 2, Time: 0.1, Owner: "n1", Variable: "v", Value: 3,
			}),
		)

		Expect(r.Observe(integrator.Snapshot{
			Step: 2, Time: 0.1, State: []float64{1, 2, 3, 4},
		})).To(Succeed())
	})

	It("should name synapse rows by their synapse", func() {
		_, err := eng.BindSynapse(3, "s")
		Expect(err).NotTo(HaveOccurred())

		rec.EXPECT().CreateTable("trace", Sample{}).Return(nil)
		r, err := NewRecorder(eng, rec, "trace")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Watch("s")).To(Succeed())

		rec.EXPECT().InsertData("trace", Sample{
			Step: 1, Time: 0.05, Owner: "s3", Variable: "s", Value: 0.5,
		})

		Expect(r.Observe(integrator.Snapshot{
			Step: 1, Time: 0.05, State: []float64{0, 0, 0, 0, 0.5},
		})).To(Succeed())
	})

	It("should skip steps between intervals", func() {
		rec.EXPECT().CreateTable("trace", Sample{}).Return(nil)
		r, _ := NewRecorder(eng, rec, "trace")
		r.SetStepInterval(2)
		Expect(r.WatchNeuron(4, "v")).To(Succeed())

		rec.EXPECT().InsertData("trace", gomock.Any()).Times(2)

		for k := 0; k < 4; k++ {
			Expect(r.Observe(integrator.Snapshot{
				Step: k, State: []float64{0, 0, 0, 0},
			})).To(Succeed())
		}
	})

	It("should fail when the table cannot be created", func() {
		rec.EXPECT().CreateTable("trace", Sample{}).Return(errors.New("exists"))

		_, err := NewRecorder(eng, rec, "trace")
		Expect(err).To(HaveOccurred())
	})
})

type failingObserver struct {
	calls int
}

func (o *failingObserver) Observe(integrator.Snapshot) error {
	o.calls++
	return errors.New("disk full")
}

var _ = Describe("Hook", func() {
	It("should stop observing after the first error", func() {
		o := &failingObserver{}
		var aborted error
		h := NewHook(o, func(err error) { aborted = err })

		ctx := sim.HookCtx{
			Pos:  integrator.HookPosStepAccepted,
			Item: integrator.Snapshot{},
		}
		h.Func(ctx)
		h.Func(ctx)

		Expect(o.calls).To(Equal(1))
		Expect(h.Err()).To(MatchError("disk full"))
		Expect(aborted).To(MatchError("disk full"))
	})

	It("should ignore other hook positions", func() {
		o := &failingObserver{}
		h := NewHook(o, nil)

		h.Func(sim.HookCtx{Pos: sim.HookPosBeforeEvent})

		Expect(o.calls).To(BeZero())
		Expect(h.Err()).NotTo(HaveOccurred())
	})
})
