// Package sysusage provides the default gopsutil-backed
// monitoring.NodeInfoProvider and monitoring.ResourceUsageProvider,
// wrapped in a circuit breaker so a hung sampling call degrades into a
// tagged timeout instead of stalling the resource monitor's tick.
package sysusage

import (
	"context"
	"errors"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	psmem "github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"

	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
	"github.com/aosedge/aos_core_lib_go/infrastructure/logging"
	"github.com/aosedge/aos_core_lib_go/infrastructure/resilience"
	"github.com/aosedge/aos_core_lib_go/monitoring"
)

// Config configures a Provider's sampling timeout and circuit breaker.
type Config struct {
	SampleTimeout  time.Duration
	CircuitBreaker resilience.Config
}

// DefaultConfig returns a conservative timeout generous enough for a
// busy host to answer a single cpu/mem/disk/net query, with a lenient
// circuit breaker tolerant of the occasional slow gopsutil read a local
// sampler (unlike a narrow HSM call budget) can shrug off.
func DefaultConfig(logger *logging.Logger) Config {
	return Config{
		SampleTimeout:  2 * time.Second,
		CircuitBreaker: resilience.LenientBackendCBConfig(logger),
	}
}

// Provider samples the local host via gopsutil.
type Provider struct {
	config  Config
	breaker *resilience.CircuitBreaker
}

// New creates a Provider.
func New(config Config) *Provider {
	return &Provider{config: config, breaker: resilience.New(config.CircuitBreaker)}
}

// GetNodeInfo returns a snapshot of total RAM only; it does not report
// disk capacity, and NodeID, Partitions and MaxDMIPS are left empty.
// MaxDMIPS has no gopsutil equivalent and is left to be overridden by
// configuration, matching how the CPU-to-DMIPS scale factor is a
// deployment constant in the original node configuration.
func (p *Provider) GetNodeInfo() (monitoring.NodeInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.SampleTimeout)
	defer cancel()

	var info monitoring.NodeInfo

	err := p.breaker.Execute(ctx, func() error {
		vm, err := psmem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return coreerrors.Failedf(err, "sysusage: reading total memory")
		}
		info.TotalRAM = vm.Total

		return nil
	})
	if err != nil {
		return monitoring.NodeInfo{}, wrapErr(err)
	}

	return info, nil
}

// GetNodeMonitoringData samples node-wide CPU, RAM, partition usage,
// and cumulative network counters.
func (p *Provider) GetNodeMonitoringData(partitions []monitoring.PartitionInfo) (monitoring.MonitoringData, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.SampleTimeout)
	defer cancel()

	var data monitoring.MonitoringData

	err := p.breaker.Execute(ctx, func() error {
		percents, err := cpu.PercentWithContext(ctx, 0, false)
		if err != nil {
			return coreerrors.Failedf(err, "sysusage: reading cpu usage")
		}
		if len(percents) > 0 {
			data.CPU = percents[0]
		}

		vm, err := psmem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return coreerrors.Failedf(err, "sysusage: reading memory usage")
		}
		data.RAM = vm.Used

		for _, part := range partitions {
			usage, err := disk.UsageWithContext(ctx, part.Path)
			if err != nil {
				return coreerrors.Failedf(err, "sysusage: reading partition %s usage", part.Name)
			}
			data.Partitions = append(data.Partitions, monitoring.PartitionUsage{
				Name: part.Name, UsedSize: usage.Used,
			})
		}

		counters, err := psnet.IOCountersWithContext(ctx, false)
		if err != nil {
			return coreerrors.Failedf(err, "sysusage: reading network counters")
		}
		if len(counters) > 0 {
			data.Download = counters[0].BytesRecv
			data.Upload = counters[0].BytesSent
		}

		return nil
	})
	if err != nil {
		return monitoring.MonitoringData{}, wrapErr(err)
	}

	return data, nil
}

// GetInstanceMonitoringData has no host-wide gopsutil equivalent for a
// single cgroup/container; callers running instances under their own
// control groups should supply a runtime-specific
// monitoring.ResourceUsageProvider instead. This default treats the
// instance as unsupported.
func (p *Provider) GetInstanceMonitoringData(instanceID string) (monitoring.MonitoringData, error) {
	return monitoring.MonitoringData{}, coreerrors.NotSupportedf(
		"sysusage: per-instance sampling requires a runtime-specific provider, got %s", instanceID)
}

func wrapErr(err error) error {
	if err == resilience.ErrCircuitOpen || err == resilience.ErrTooManyRequests {
		return coreerrors.Wrap(coreerrors.Timeout, "sysusage: circuit open", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return coreerrors.Wrap(coreerrors.Timeout, "sysusage: sampling timed out", err)
	}
	return err
}
