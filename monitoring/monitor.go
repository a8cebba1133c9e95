// Package monitoring turns a running link into a small web server that
// reports queue depths, device link state, and process resource usage.
package monitoring

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"

	"github.com/zeroasic/umilink/memdev"
	"github.com/zeroasic/umilink/queue"
)

// Monitor serves the state of registered registries and devices over HTTP.
type Monitor struct {
	portNumber  int
	openBrowser bool

	registries []*queue.Registry
	devices    []*memdev.Comp
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor page in a browser.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// RegisterRegistry registers a queue registry to be monitored.
func (m *Monitor) RegisterRegistry(reg *queue.Registry) {
	m.registries = append(m.registries, reg)
}

// RegisterDevice registers a memory device to be monitored.
func (m *Monitor) RegisterDevice(dev *memdev.Comp) {
	m.devices = append(m.devices, dev)
}

// StartServer starts the monitor as a web server with a custom port if
// wanted. It returns the port the server listens on.
func (m *Monitor) StartServer() int {
	r := mux.NewRouter()
	r.HandleFunc("/api/queues", m.listQueues)
	r.HandleFunc("/api/devices", m.listDevices)
	r.HandleFunc("/api/device/{name}", m.deviceDetails)
	r.HandleFunc("/api/resource", m.listResources)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	port := listener.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("http://localhost:%d", port)
	fmt.Fprintf(os.Stderr, "Monitoring link with %s\n", url)

	go func() {
		dieOnErr(http.Serve(listener, r))
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url + "/api/queues"); err != nil {
			fmt.Fprintf(os.Stderr, "cannot open browser: %v\n", err)
		}
	}

	return port
}

func (m *Monitor) listQueues(w http.ResponseWriter, _ *http.Request) {
	statuses := []queue.Status{}
	for _, reg := range m.registries {
		statuses = append(statuses, reg.Statuses()...)
	}

	writeJSON(w, statuses)
}

type deviceSummary struct {
	Name     string `json:"name"`
	Topology string `json:"topology"`
}

func (m *Monitor) listDevices(w http.ResponseWriter, _ *http.Request) {
	summaries := []deviceSummary{}
	for _, d := range m.devices {
		summaries = append(summaries, deviceSummary{
			Name:     d.Name(),
			Topology: d.Topology(),
		})
	}

	writeJSON(w, summaries)
}

type deviceDetail struct {
	Name     string           `json:"name"`
	Topology string           `json:"topology"`
	Local    memdev.LinkState `json:"local"`
	Remote   memdev.LinkState `json:"remote"`
}

func (m *Monitor) deviceDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	for _, d := range m.devices {
		if d.Name() != name {
			continue
		}

		writeJSON(w, deviceDetail{
			Name:     d.Name(),
			Topology: d.Topology(),
			Local:    d.LocalLinkState(),
			Remote:   d.RemoteLinkState(),
		})

		return
	}

	http.Error(w, "device not found", http.StatusNotFound)
}

type resourceReport struct {
	MemoryRSSBytes uint64  `json:"memory_rss_bytes"`
	CPUPercent     float64 `json:"cpu_percent"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	report := resourceReport{}
	if mem, err := p.MemoryInfo(); err == nil {
		report.MemoryRSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		report.CPUPercent = cpu
	}

	writeJSON(w, report)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	dieOnErr(json.NewEncoder(w).Encode(v))
}

func dieOnErr(err error) {
	if err != nil {
		panic(err)
	}
}
