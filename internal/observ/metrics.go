package observ

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

type registry struct {
	mu       sync.Mutex
	counters map[string]map[string]int64   // name -> labelsKey -> count
	gauges   map[string]map[string]float64 // name -> labelsKey -> value
	hist     map[string]map[string][]float64
}

var reg = newRegistry()

func newRegistry() *registry {
	return &registry{
		counters: map[string]map[string]int64{},
		gauges:   map[string]map[string]float64{},
		hist:     map[string]map[string][]float64{},
	}
}

// labelKey renders labels as "k1=v1,k2=v2" with sorted keys.
func labelKey(lbl map[string]string) string {
	if len(lbl) == 0 {
		return ""
	}
	parts := make([]string, 0, len(lbl))
	for _, k := range slices.Sorted(maps.Keys(lbl)) {
		parts = append(parts, k+"="+lbl[k])
	}
	return strings.Join(parts, ",")
}

func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1)
}

func IncCounterBy(name string, labels map[string]string, n int64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.counters[name]
	if !ok {
		m = map[string]int64{}
		reg.counters[name] = m
	}
	m[labelKey(labels)] += n
}

func SetGauge(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.gauges[name]
	if !ok {
		m = map[string]float64{}
		reg.gauges[name] = m
	}
	m[labelKey(labels)] = value
}

func Observe(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.hist[name]
	if !ok {
		m = map[string][]float64{}
		reg.hist[name] = m
	}
	k := labelKey(labels)
	m[k] = append(m[k], value)
}

// RecordDuration records d in milliseconds under name+"_ms".
func RecordDuration(name string, d time.Duration, labels map[string]string) {
	Observe(name+"_ms", float64(d.Milliseconds()), labels)
}

// CounterValue returns the current count for name and labels.
func CounterValue(name string, labels map[string]string) int64 {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.counters[name][labelKey(labels)]
}

func GaugeValue(name string, labels map[string]string) (float64, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	v, ok := reg.gauges[name][labelKey(labels)]
	return v, ok
}

// Reset clears all metrics. Used by tests and at the start of a trading day.
func Reset() {
	fresh := newRegistry()
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.counters = fresh.counters
	reg.gauges = fresh.gauges
	reg.hist = fresh.hist
}

// Handler dumps the registry as JSON (not Prometheus format on purpose)
func Handler() http.Handler {
	type dump struct {
		Counters map[string]map[string]int64     `json:"counters"`
		Gauges   map[string]map[string]float64   `json:"gauges"`
		Hist     map[string]map[string][]float64 `json:"histograms"`
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dump{Counters: reg.counters, Gauges: reg.gauges, Hist: reg.hist})
	})
}

// HealthStatus is served by HealthHandler.
type HealthStatus struct {
	Status    string         `json:"status"`    // "healthy", "degraded", "failed"
	Timestamp string         `json:"timestamp"` // ISO 8601
	Uptime    string         `json:"uptime"`
	Version   string         `json:"version"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthProbe reports the status string and supporting details.
type HealthProbe func() (string, map[string]any)

var (
	startTime = time.Now()
	version   = "dev" // Set via build flags

	probeMu sync.RWMutex
	probe   HealthProbe
)

func SetVersion(v string) {
	version = v
}

// SetHealthProbe installs the function consulted by HealthHandler.
func SetHealthProbe(p HealthProbe) {
	probeMu.Lock()
	defer probeMu.Unlock()
	probe = p
}

// Health evaluates the installed probe. Without a probe the process is healthy.
func Health() HealthStatus {
	probeMu.RLock()
	p := probe
	probeMu.RUnlock()

	status, details := "healthy", map[string]any(nil)
	if p != nil {
		status, details = p()
	}
	return HealthStatus{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Version:   version,
		Details:   details,
	}
}

func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := Health()
		code := http.StatusOK
		switch health.Status {
		case "degraded":
			code = http.StatusPartialContent
		case "failed":
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(health)
	})
}
