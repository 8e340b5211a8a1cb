// Command flowagent is the flow telemetry collector and analyzer. It wires
// up the configured wire-protocol collectors, the shared flow store, the
// latency monitor and the baseline-anomaly capability, then drives periodic
// analysis passes until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/netweaver/flowtelemetry/pkg/archive"
	"github.com/netweaver/flowtelemetry/pkg/baselineanomaly"
	"github.com/netweaver/flowtelemetry/pkg/capability"
	"github.com/netweaver/flowtelemetry/pkg/collector"
	"github.com/netweaver/flowtelemetry/pkg/config"
	"github.com/netweaver/flowtelemetry/pkg/flow"
	"github.com/netweaver/flowtelemetry/pkg/ipfix"
	"github.com/netweaver/flowtelemetry/pkg/jflow"
	"github.com/netweaver/flowtelemetry/pkg/jsonflow"
	"github.com/netweaver/flowtelemetry/pkg/monitor"
	"github.com/netweaver/flowtelemetry/pkg/netflow"
	"github.com/netweaver/flowtelemetry/pkg/orchestrator"
	"github.com/netweaver/flowtelemetry/pkg/sflow"
	"github.com/netweaver/flowtelemetry/pkg/store"
	"github.com/netweaver/flowtelemetry/pkg/template"
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func parseHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}

func main() {
	configPath := flag.String("config", "configs/flowagent.yaml", "path to configuration file")
	flag.Parse()

	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowagent: logger init: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	st := store.NewStore(cfg.Store.Capacity)

	mon := monitor.New(cfg.Thresholds.ThresholdMS, cfg.Thresholds.WindowSeconds, cfg.Thresholds.MinSamples, cfg.Thresholds.CooldownSeconds)

	baselineCfg := baselineanomaly.Config{
		WindowSeconds:    cfg.Baseline.WindowSeconds,
		MinSamplesPerKey: cfg.Baseline.MinSamplesPerKey,
		Alpha:            cfg.Baseline.Alpha,
		ZThreshold:       cfg.Baseline.ZThreshold,
		MinUpdates:       cfg.Baseline.MinUpdates,
		GroupMode:        baselineanomaly.GroupMode(cfg.Baseline.GroupMode),
		CooldownSeconds:  cfg.Baseline.CooldownSeconds,
		ShiftThreshold:   cfg.Baseline.ShiftThreshold,
		ShiftMinTotal:    cfg.Baseline.ShiftMinTotal,
	}
	baselineCap := baselineanomaly.New(baselineCfg)

	orch := orchestrator.New(st, mon, baselineCap)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	netflowCache := template.NewCache()
	ipfixCache := template.NewCache()
	jflowCache := template.NewCache()

	registerCollector(orch, logger, "sflow", cfg.Collectors.SFlow, st, func(data []byte, exporter string) []flow.Record {
		return sflow.Decode(data)
	})
	registerCollector(orch, logger, "netflow", cfg.Collectors.NetFlow, st, func(data []byte, exporter string) []flow.Record {
		return netflow.Decode(data, exporter, netflowCache)
	})
	registerCollector(orch, logger, "ipfix", cfg.Collectors.IPFIX, st, func(data []byte, exporter string) []flow.Record {
		return ipfix.Decode(data, exporter, ipfixCache)
	})
	registerCollector(orch, logger, "jflow", cfg.Collectors.JFlow, st, func(data []byte, exporter string) []flow.Record {
		return jflow.Decode(data, exporter, jflowCache)
	})
	registerCollector(orch, logger, "json", cfg.Collectors.JSON, st, func(data []byte, exporter string) []flow.Record {
		return jsonflow.Decode(data)
	})

	startConfiguredCollectors(ctx, orch, logger, cfg)

	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		a, err := archive.New(ctx, archive.Config{
			Host:     cfg.Archive.Host,
			Port:     cfg.Archive.Port,
			Database: cfg.Archive.Database,
			User:     cfg.Archive.User,
			Password: cfg.Archive.Password,
			PoolSize: cfg.Archive.PoolSize,
		}, logger)
		if err != nil {
			logger.Warn("archive disabled: failed to connect", zap.Error(err))
		} else {
			archiver = a
			defer archiver.Close()
		}
	}

	go analysisLoop(ctx, orch, logger, archiver, cfg.Monitoring.AnalysisIntervalSeconds, cfg.Baseline.WindowSeconds)

	logger.Info("flowagent started", zap.Strings("capabilities", orch.ListCapabilities()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("flowagent shutting down")
	cancel()
	for _, name := range orch.ListCapabilities() {
		orch.StopCollection(name)
	}
}

func registerCollector(orch *orchestrator.Orchestrator, logger *zap.Logger, name string, cfg config.CollectorConfig, st *store.Store, decode collector.DecodeFunc) {
	c := collector.New(name, decode, st)
	if err := orch.Register(name, capability.Capability(c)); err != nil {
		logger.Error("failed to register capability", zap.String("name", name), zap.Error(err))
	}
}

func startConfiguredCollectors(ctx context.Context, orch *orchestrator.Orchestrator, logger *zap.Logger, cfg config.Config) {
	start := func(name string, cc config.CollectorConfig) {
		if !cc.Enabled {
			return
		}
		host, port := parseHostPort(cc.Listen)
		if err := orch.StartCollection(ctx, name, host, port); err != nil {
			logger.Error("failed to start collector", zap.String("name", name), zap.Error(err))
			return
		}
		logger.Info("collector started", zap.String("name", name), zap.String("listen", cc.Listen))
	}

	start("sflow", cfg.Collectors.SFlow)
	start("netflow", cfg.Collectors.NetFlow)
	start("ipfix", cfg.Collectors.IPFIX)
	start("jflow", cfg.Collectors.JFlow)
	start("json", cfg.Collectors.JSON)
}

func analysisLoop(ctx context.Context, orch *orchestrator.Orchestrator, logger *zap.Logger, archiver *archive.Archiver, intervalSeconds, baselineWindowSeconds int) {
	ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := orch.MonitorOnce()
			if result.AlertCount > 0 {
				logger.Info("latency alerts", zap.Int("count", result.AlertCount))
				if archiver != nil {
					records := make([]archive.AlertRecord, 0, len(result.Alerts))
					for _, a := range result.Alerts {
						records = append(records, archive.AlertRecord{
							Time:      time.Unix(int64(a.TS), 0),
							Key:       a.Key,
							P95MS:     a.P95,
							Threshold: a.Threshold,
							Samples:   a.Samples,
						})
					}
					archiver.WriteAlerts(ctx, records)
				}
			}

			baselineResult := orch.BaselineAnalyzeOnce(baselineWindowSeconds)
			if len(baselineResult.Anomalies) > 0 {
				logger.Info("baseline anomalies", zap.Int("count", len(baselineResult.Anomalies)))
				if archiver != nil {
					now := time.Now()
					records := make([]archive.AnomalyRecord, 0, len(baselineResult.Anomalies))
					for _, a := range baselineResult.Anomalies {
						records = append(records, archive.AnomalyRecord{
							Time: now, Key: a.Key, Metric: a.Metric, Value: a.Value, Mean: a.Mean, Std: a.Std, Z: a.Z,
						})
					}
					archiver.WriteAnomalies(ctx, records)
				}
			}
			if baselineResult.Shift != nil {
				logger.Info("distribution shift detected", zap.String("dimension", baselineResult.Shift.Dimension), zap.Float64("l1", baselineResult.Shift.L1Distance))
				if archiver != nil {
					archiver.WriteShift(ctx, archive.ShiftRecord{
						Time:       time.Now(),
						Dimension:  baselineResult.Shift.Dimension,
						L1Distance: baselineResult.Shift.L1Distance,
					})
				}
			}
		}
	}
}
