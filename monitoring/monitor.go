// Package monitoring serves a running simulation over HTTP so that it can be
// watched, paused and profiled from a browser.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/neurosim/integrator"
	"github.com/sarchlab/neurosim/monitoring/web"
	"github.com/sarchlab/neurosim/sim"
	"github.com/sarchlab/neurosim/state"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine      sim.Engine
	stateEngine *state.Engine
	portNumber  int

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	snapshotLock sync.RWMutex
	snapshot     integrator.Snapshot
	hasSnapshot  bool

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterStateEngine registers the state layout used to name the values of
// the snapshots.
func (m *Monitor) RegisterStateEngine(eng *state.Engine) {
	m.stateEngine = eng
}

// Func keeps a copy of every accepted step. Register the monitor as a hook of
// the integrator.
func (m *Monitor) Func(ctx sim.HookCtx) {
	if ctx.Pos != integrator.HookPosStepAccepted {
		return
	}

	s := ctx.Item.(integrator.Snapshot)

	m.snapshotLock.Lock()
	defer m.snapshotLock.Unlock()

	m.snapshot.Step = s.Step
	m.snapshot.Time = s.Time
	m.snapshot.State = append(m.snapshot.State[:0], s.State...)
	m.hasSnapshot = true
}

// Snapshot returns a copy of the latest accepted step.
func (m *Monitor) Snapshot() (integrator.Snapshot, bool) {
	m.snapshotLock.RLock()
	defer m.snapshotLock.RUnlock()

	s := m.snapshot
	s.State = append([]float64(nil), m.snapshot.State...)

	return s, m.hasSnapshot
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler that serves the API and the web page.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/state/{name}", m.variableValues)
	r.HandleFunc("/api/neuron/{id:[0-9-]+}", m.neuronDetails)
	r.HandleFunc("/api/synapse/{id:[0-9-]+}", m.synapseDetails)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server on the configured port, or
// on a random port if none is configured.
func (m *Monitor) StartServer() error {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return fmt.Errorf("starting monitor: %w", err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", m.URL())

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Panic(err)
		}
	}()

	return nil
}

// URL returns the address of the running server.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	port := m.listener.Addr().(*net.TCPAddr).Port

	return fmt.Sprintf("http://localhost:%d", port)
}

// OpenInBrowser opens the monitor page in the default browser.
func (m *Monitor) OpenInBrowser() error {
	if m.listener == nil {
		return errors.New("monitor server is not running")
	}

	return browser.OpenURL(m.URL())
}

// StopServer shuts the server down.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	err := m.server.Close()
	m.server = nil
	m.listener = nil

	return err
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

type nowRsp struct {
	Now  float64 `json:"now"`
	Time float64 `json:"time"`
	Step int     `json:"step"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	rsp := nowRsp{Now: float64(m.engine.CurrentTime())}

	m.snapshotLock.RLock()
	rsp.Time = m.snapshot.Time
	rsp.Step = m.snapshot.Step
	m.snapshotLock.RUnlock()

	writeJSON(w, rsp)
}

type valueRsp struct {
	Neuron int     `json:"neuron"`
	Value  float64 `json:"value"`
}

type stateRsp struct {
	Step   int        `json:"step"`
	Time   float64    `json:"time"`
	Name   string     `json:"name"`
	Values []valueRsp `json:"values"`
}

func (m *Monitor) variableValues(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	indices := m.stateEngine.IndicesWithName(name)
	if len(indices) == 0 {
		notFound(w, fmt.Sprintf("no neuron has variable %q", name))
		return
	}

	s, _ := m.Snapshot()
	rsp := stateRsp{Step: s.Step, Time: s.Time, Name: name}

	for _, idx := range indices {
		b, err := m.stateEngine.BindingAt(idx)
		dieOnErr(err)

		v := valueRsp{Neuron: b.NeuronID}
		if idx < len(s.State) {
			v.Value = s.State[idx]
		}

		rsp.Values = append(rsp.Values, v)
	}

	writeJSON(w, rsp)
}

// ownerView is what the monitor shows about a neuron or a synapse.
type ownerView struct {
	Kind       string
	ID         int
	Time       float64
	Variables  []variableView
	Parameters []variableView
}

type variableView struct {
	Name  string
	Index int
	Value float64
}

func (m *Monitor) neuronDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || !m.stateEngine.HasNeuron(id) {
		notFound(w, "Neuron not found")
		return
	}

	m.writeOwner(w, "neuron", id, m.stateEngine.ParametersOf(id),
		func(b state.Binding) bool { return !b.Synapse && b.NeuronID == id })
}

func (m *Monitor) synapseDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || !m.stateEngine.HasSynapse(id) {
		notFound(w, "Synapse not found")
		return
	}

	m.writeOwner(w, "synapse", id, m.stateEngine.SynapseParametersOf(id),
		func(b state.Binding) bool { return b.Synapse && b.SynapseID == id })
}

func (m *Monitor) writeOwner(
	w http.ResponseWriter,
	kind string,
	id int,
	params map[string]float64,
	owns func(state.Binding) bool,
) {
	s, _ := m.Snapshot()
	view := &ownerView{Kind: kind, ID: id, Time: s.Time}

	for _, b := range m.stateEngine.Bindings() {
		if !owns(b) {
			continue
		}

		v := variableView{Name: b.Name, Index: b.Index}
		if b.Index < len(s.State) {
			v.Value = s.State[b.Index]
		}

		view.Variables = append(view.Variables, v)
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		view.Parameters = append(view.Parameters,
			variableView{Name: name, Index: -1, Value: params[name]})
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(view)
	serializer.SetMaxDepth(3)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.rsp())
	}

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func notFound(w http.ResponseWriter, msg string) {
	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte(msg))
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
