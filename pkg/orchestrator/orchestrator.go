// Package orchestrator wires together the capability registry, the shared
// flow store, the latency monitor and the baseline-anomaly capability, and
// exposes the operation surface an agent host drives.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/netweaver/flowtelemetry/pkg/baselineanomaly"
	"github.com/netweaver/flowtelemetry/pkg/capability"
	"github.com/netweaver/flowtelemetry/pkg/monitor"
	"github.com/netweaver/flowtelemetry/pkg/store"
)

// MonitorOnceResult bundles one monitor_once pass.
type MonitorOnceResult struct {
	Alerts     []monitor.Alert
	Analysis   monitor.Analysis
	AlertCount int
}

// Thresholds is the current value of LatencyMonitor's runtime parameters,
// returned by SetThresholds.
type Thresholds struct {
	ThresholdMS     float64
	WindowSeconds   int
	MinSamples      int
	CooldownSeconds int
}

// Orchestrator registers capabilities under unique names, shares one
// FlowStore across them, and drives the latency monitor and baseline
// anomaly capability against that store.
type Orchestrator struct {
	mu           sync.Mutex
	capabilities map[string]capability.Capability

	store    *store.Store
	monitor  *monitor.Monitor
	baseline *baselineanomaly.Capability
}

// New returns an Orchestrator sharing st, driving mon and baseline.
func New(st *store.Store, mon *monitor.Monitor, baseline *baselineanomaly.Capability) *Orchestrator {
	return &Orchestrator{
		capabilities: make(map[string]capability.Capability),
		store:        st,
		monitor:      mon,
		baseline:     baseline,
	}
}

// Register adds a capability under name. Registering a name already in use
// is an error: duplicate capability names are rejected, not overwritten.
func (o *Orchestrator) Register(name string, cap capability.Capability) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.capabilities[name]; exists {
		return fmt.Errorf("capability %q already registered", name)
	}
	o.capabilities[name] = cap
	return nil
}

// ListCapabilities returns the names of all registered capabilities.
func (o *Orchestrator) ListCapabilities() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	names := make([]string, 0, len(o.capabilities))
	for name := range o.capabilities {
		names = append(names, name)
	}
	return names
}

// CapabilityStatus returns the named capability's status snapshot.
func (o *Orchestrator) CapabilityStatus(name string) (capability.Status, error) {
	o.mu.Lock()
	cap, ok := o.capabilities[name]
	o.mu.Unlock()

	if !ok {
		return capability.Status{}, fmt.Errorf("capability %q not registered", name)
	}
	return cap.Status(), nil
}

// StartCollection starts the named capability at host:port.
func (o *Orchestrator) StartCollection(ctx context.Context, name, host string, port int) error {
	o.mu.Lock()
	cap, ok := o.capabilities[name]
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("capability %q not registered", name)
	}
	return cap.Start(ctx, host, port)
}

// StopCollection stops the named capability.
func (o *Orchestrator) StopCollection(name string) error {
	o.mu.Lock()
	cap, ok := o.capabilities[name]
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("capability %q not registered", name)
	}
	return cap.Stop()
}

// SetThresholds updates the latency monitor's runtime parameters, leaving
// any nil field unchanged, and returns the resulting values.
func (o *Orchestrator) SetThresholds(thresholdMS *float64, windowSeconds, minSamples, cooldownSeconds *int) Thresholds {
	o.monitor.SetThresholds(thresholdMS, windowSeconds, minSamples, cooldownSeconds)
	return Thresholds{
		ThresholdMS:     o.monitor.ThresholdMS,
		WindowSeconds:   o.monitor.WindowSeconds,
		MinSamples:      o.monitor.MinSamples,
		CooldownSeconds: o.monitor.CooldownSeconds,
	}
}

// AnalyzeLatency runs LatencyMonitor.Analyze over the last seconds of
// history. seconds <= 0 uses the monitor's configured window.
func (o *Orchestrator) AnalyzeLatency(seconds int) monitor.Analysis {
	if seconds <= 0 {
		seconds = o.monitor.WindowSeconds
	}
	records := o.store.Recent(seconds)
	return o.monitor.Analyze(records)
}

// MonitorOnce runs one analyze+build_alerts pass over the monitor's
// configured window.
func (o *Orchestrator) MonitorOnce() MonitorOnceResult {
	analysis := o.AnalyzeLatency(o.monitor.WindowSeconds)
	alerts := o.monitor.BuildAlerts(analysis)
	return MonitorOnceResult{
		Alerts:     alerts,
		Analysis:   analysis,
		AlertCount: len(alerts),
	}
}

// BaselineConfigure replaces the baseline-anomaly capability's runtime
// configuration.
func (o *Orchestrator) BaselineConfigure(cfg baselineanomaly.Config) {
	o.baseline.Configure(cfg)
}

// BaselineAnalyzeOnce runs one baseline-anomaly analysis pass over the
// given window.
func (o *Orchestrator) BaselineAnalyzeOnce(windowSeconds int) baselineanomaly.Result {
	records := o.store.Recent(windowSeconds)
	return o.baseline.AnalyzeOnce(records)
}
