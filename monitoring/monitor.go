// Package monitoring turns a running board into a small HTTP server for
// external observation: slot table stats, peripheral snapshots, clock
// state, process resources and CPU profiles.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/johnnohj/hostbridge/bridge"
	"github.com/johnnohj/hostbridge/periph"
)

// A Monitor exposes the internals of a board over HTTP. It only reads
// through the same accessors every other caller uses and is never on the
// request hot path.
type Monitor struct {
	portNumber int
	url        string

	clock  *bridge.Clock
	table  *bridge.Table
	pins   *periph.Pins
	analog *periph.Analog
	buses  *periph.Buses

	detailLock sync.Mutex
	details    map[string]any
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		details: make(map[string]any),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// rejected and replaced with a random one.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is not allowed for the monitoring server. "+
				"Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterClock registers the virtual clock to be monitored.
func (m *Monitor) RegisterClock(c *bridge.Clock) {
	m.clock = c
	m.RegisterDetail("clock", c)
}

// RegisterTable registers the request slot table to be monitored.
func (m *Monitor) RegisterTable(t *bridge.Table) {
	m.table = t
	m.RegisterDetail("table", t)
}

// RegisterPins registers the pin registry to be monitored.
func (m *Monitor) RegisterPins(p *periph.Pins) {
	m.pins = p
	m.RegisterDetail("pins", p)
}

// RegisterAnalog registers the analog registry to be monitored.
func (m *Monitor) RegisterAnalog(a *periph.Analog) {
	m.analog = a
	m.RegisterDetail("analog", a)
}

// RegisterBuses registers the bus registry to be monitored.
func (m *Monitor) RegisterBuses(b *periph.Buses) {
	m.buses = b
	m.RegisterDetail("buses", b)
}

// RegisterDetail registers an arbitrary object for deep inspection under
// /api/detail/{name}.
func (m *Monitor) RegisterDetail(name string, obj any) {
	m.detailLock.Lock()
	defer m.detailLock.Unlock()

	m.details[name] = obj
}

// URL returns the address of the running server, empty before StartServer.
func (m *Monitor) URL() string { return m.url }

// StartServer starts the monitor as a web server.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	r.HandleFunc("/api/stats", m.tableStats)
	r.HandleFunc("/api/slots", m.slots)
	r.HandleFunc("/api/clock", m.clockState)
	r.HandleFunc("/api/pins", m.pinStates)
	r.HandleFunc("/api/analog", m.analogStates)
	r.HandleFunc("/api/buses", m.busStates)
	r.HandleFunc("/api/detail/{name}", m.detail)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	actualPort := ":0"
	if m.portNumber >= 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.url = fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring board with %s\n", m.url)

	go func() {
		err := http.Serve(listener, r)
		dieOnErr(err)
	}()
}

// OpenDashboard opens the monitor address in the local browser.
func (m *Monitor) OpenDashboard() error {
	if m.url == "" {
		return fmt.Errorf("monitoring: server is not running")
	}

	return browser.OpenURL(m.url + "/api/stats")
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	bs, err := json.Marshal(v)
	dieOnErr(err)

	_, err = w.Write(bs)
	dieOnErr(err)
}

func (m *Monitor) tableStats(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.table.Stats())
}

func (m *Monitor) slots(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.table.Snapshot())
}

func (m *Monitor) clockState(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.clock.Stats())
}

func (m *Monitor) pinStates(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.pins.Snapshot())
}

func (m *Monitor) analogStates(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.analog.Snapshot())
}

func (m *Monitor) busStates(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.buses.Snapshot())
}

func (m *Monitor) detail(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	m.detailLock.Lock()
	obj, ok := m.details[name]
	m.detailLock.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("object not found"))
		dieOnErr(err)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(obj)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	proc, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memorySize, err := proc.MemoryInfo()
	dieOnErr(err)

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	m.writeJSON(w, prof)
}

func dieOnErr(err error) {
	if err != nil {
		panic(err)
	}
}
