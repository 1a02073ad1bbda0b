package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
	"github.com/aosedge/aos_core_lib_go/infrastructure/metrics"
	"github.com/aosedge/aos_core_lib_go/infrastructure/resilience"
)

// Config configures a ResourceMonitor's sampling cadence, matching
// original_source/.../monitoring/config.hpp's fields.
type Config struct {
	PollPeriod    time.Duration
	AverageWindow time.Duration
	// SendRetry configures the backoff used to retry a transient
	// publish failure before it is logged and dropped for this tick.
	SendRetry resilience.RetryConfig
}

// DefaultConfig returns the cadence used by monitor sampling fixtures
// across this package: a one second poll against a four second
// averaging window.
func DefaultConfig() Config {
	return Config{
		PollPeriod:    time.Second,
		AverageWindow: 4 * time.Second,
		SendRetry:     resilience.DefaultRetryConfig(),
	}
}

type instanceEntry struct {
	ident       InstanceIdent
	runtimeID   string
	state       InstanceState
	rules       *AlertRules
	alerts      []*alertProcessor
	lastSampled MonitoringData
}

// ResourceMonitor samples node and instance resource usage on a fixed
// cadence, folds each sample into a moving-average window, evaluates
// alert rules, and publishes the result while gated on connectivity.
// It is the Go counterpart of resourcemonitor.cpp's ResourceMonitor,
// using monitoring.cpp's percentage-to-absolute rule conversion.
type ResourceMonitor struct {
	mu sync.Mutex

	config   Config
	nodeInfo NodeInfo

	usageProvider    ResourceUsageProvider
	monitoringSender MonitoringSender
	alertSender      AlertSender
	logger           *zap.Logger

	average        *average
	systemAlerts   []*alertProcessor
	instances      map[string]*instanceEntry
	connectionGate atomic.Bool

	cron                *cron.Cron
	cronID              cron.EntryID
	running             bool
	connectionPublisher ConnectionPublisher
}

// New builds a ResourceMonitor. Init-style validation happens here
// rather than in a separate call, since Go constructors do not need
// the two-phase Init() shape the teacher's C++ classes use.
func New(
	config Config,
	nodeInfo NodeInfo,
	usageProvider ResourceUsageProvider,
	monitoringSender MonitoringSender,
	alertSender AlertSender,
	alertRules *AlertRules,
	logger *zap.Logger,
) (*ResourceMonitor, error) {
	if config.PollPeriod <= 0 {
		return nil, coreerrors.InvalidArgumentf("monitoring: poll period must be positive")
	}
	if usageProvider == nil || monitoringSender == nil {
		return nil, coreerrors.InvalidArgumentf("monitoring: usage provider and monitoring sender are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SendRetry.MaxAttempts <= 0 {
		config.SendRetry = resilience.DefaultRetryConfig()
	}

	windowCount := uint64(config.AverageWindow / config.PollPeriod)

	monitor := &ResourceMonitor{
		config:           config,
		nodeInfo:         nodeInfo,
		usageProvider:    usageProvider,
		monitoringSender: monitoringSender,
		alertSender:      alertSender,
		logger:           logger,
		average:          initAverage(windowCount),
		instances:        make(map[string]*instanceEntry),
	}
	// A node only starts publishing once it observes a cloud connection;
	// until then samples are still collected so the average window is
	// warm by the time OnConnect arrives.
	monitor.connectionGate.Store(false)

	monitor.systemAlerts = monitor.buildSystemAlertProcessors(alertRules)

	return monitor, nil
}

func (m *ResourceMonitor) cpuToDMIPs(cpuPercent float64) float64 {
	return cpuPercent * float64(m.nodeInfo.MaxDMIPS) / 100.0
}

func (m *ResourceMonitor) getPartitionTotalSize(name string) (uint64, bool) {
	for _, p := range m.nodeInfo.Partitions {
		if p.Name == name {
			return p.TotalSize, true
		}
	}
	return 0, false
}

// buildSystemAlertProcessors mirrors SetupSystemAlerts/SetNodeAlertProcessors:
// percentage rules are converted against the node's own capacity, the
// network counters are already absolute.
func (m *ResourceMonitor) buildSystemAlertProcessors(rules *AlertRules) []*alertProcessor {
	if rules == nil {
		return nil
	}

	template := QuotaAlert{NodeID: m.nodeInfo.NodeID}
	var processors []*alertProcessor

	if rules.CPU != nil {
		id := ResourceIdentifier{Level: ResourceLevelSystem, Type: ResourceTypeCPU}
		processors = append(processors, newAlertProcessor(id, rules.CPU.ToPoints(m.nodeInfo.MaxDMIPS), m.alertSender, template))
	}

	if rules.RAM != nil {
		id := ResourceIdentifier{Level: ResourceLevelSystem, Type: ResourceTypeRAM}
		processors = append(processors, newAlertProcessor(id, rules.RAM.ToPoints(m.nodeInfo.TotalRAM), m.alertSender, template))
	}

	for _, rule := range rules.Partitions {
		total, ok := m.getPartitionTotalSize(rule.Name)
		if !ok {
			m.logger.Warn("skipping alert rule for unknown partition", zap.String("partition", rule.Name))
			continue
		}
		id := ResourceIdentifier{Level: ResourceLevelSystem, Type: ResourceTypePartition, PartitionName: rule.Name}
		processors = append(processors, newAlertProcessor(id, rule.AlertRulePercents.ToPoints(total), m.alertSender, template))
	}

	if rules.Download != nil {
		id := ResourceIdentifier{Level: ResourceLevelSystem, Type: ResourceTypeDownload}
		processors = append(processors, newAlertProcessor(id, *rules.Download, m.alertSender, template))
	}

	if rules.Upload != nil {
		id := ResourceIdentifier{Level: ResourceLevelSystem, Type: ResourceTypeUpload}
		processors = append(processors, newAlertProcessor(id, *rules.Upload, m.alertSender, template))
	}

	return processors
}

// buildInstanceAlertProcessors mirrors SetupInstanceAlerts/SetInstanceAlertProcessors.
// Instance CPU/RAM rules are percentages of the same node-wide capacity
// an instance shares with every other workload, so they convert
// against the node's MaxDMIPS/TotalRAM exactly like the system rules.
func (m *ResourceMonitor) buildInstanceAlertProcessors(ident InstanceIdent, rules *AlertRules) []*alertProcessor {
	if rules == nil {
		return nil
	}

	template := QuotaAlert{NodeID: m.nodeInfo.NodeID}
	identCopy := ident
	var processors []*alertProcessor

	if rules.CPU != nil {
		id := ResourceIdentifier{Level: ResourceLevelInstance, Type: ResourceTypeCPU, InstanceIdent: &identCopy}
		processors = append(processors, newAlertProcessor(id, rules.CPU.ToPoints(m.nodeInfo.MaxDMIPS), m.alertSender, template))
	}

	if rules.RAM != nil {
		id := ResourceIdentifier{Level: ResourceLevelInstance, Type: ResourceTypeRAM, InstanceIdent: &identCopy}
		processors = append(processors, newAlertProcessor(id, rules.RAM.ToPoints(m.nodeInfo.TotalRAM), m.alertSender, template))
	}

	for _, rule := range rules.Partitions {
		total, ok := m.getPartitionTotalSize(rule.Name)
		if !ok {
			m.logger.Warn("skipping instance alert rule for unknown partition",
				zap.String("partition", rule.Name))
			continue
		}
		id := ResourceIdentifier{
			Level: ResourceLevelInstance, Type: ResourceTypePartition,
			PartitionName: rule.Name, InstanceIdent: &identCopy,
		}
		processors = append(processors, newAlertProcessor(id, rule.AlertRulePercents.ToPoints(total), m.alertSender, template))
	}

	if rules.Download != nil {
		id := ResourceIdentifier{Level: ResourceLevelInstance, Type: ResourceTypeDownload, InstanceIdent: &identCopy}
		processors = append(processors, newAlertProcessor(id, *rules.Download, m.alertSender, template))
	}

	if rules.Upload != nil {
		id := ResourceIdentifier{Level: ResourceLevelInstance, Type: ResourceTypeUpload, InstanceIdent: &identCopy}
		processors = append(processors, newAlertProcessor(id, *rules.Upload, m.alertSender, template))
	}

	return processors
}

// Start arms the periodic sampling tick. Calling Start twice is a
// wrong-state error.
// Start arms the periodic sampling tick. When publisher is non-nil, the
// monitor subscribes itself as a ConnectionListener so connectivity
// transitions gate publication without the caller having to forward
// OnConnect/OnDisconnect by hand.
func (m *ResourceMonitor) Start(publisher ConnectionPublisher) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return coreerrors.WrongStatef("monitoring: resource monitor already started")
	}

	m.cron = cron.New()

	id, err := m.cron.AddFunc(fmt.Sprintf("@every %s", m.config.PollPeriod), m.processMonitoring)
	if err != nil {
		return coreerrors.Failedf(err, "monitoring: scheduling sampling tick")
	}

	if publisher != nil {
		publisher.SubscribeListener(m)
		m.connectionPublisher = publisher
	}

	m.cronID = id
	m.cron.Start()
	m.running = true

	return nil
}

// Stop disarms the periodic sampling tick and unsubscribes from the
// connection publisher supplied to Start, if any.
func (m *ResourceMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return coreerrors.WrongStatef("monitoring: resource monitor is not running")
	}

	ctx := m.cron.Stop()
	<-ctx.Done()
	m.running = false

	if m.connectionPublisher != nil {
		m.connectionPublisher.UnsubscribeListener(m)
		m.connectionPublisher = nil
	}

	return nil
}

// OnConnect opens the connectivity gate: the next sampling tick, and
// every one after, will publish.
func (m *ResourceMonitor) OnConnect() {
	m.connectionGate.Store(true)
}

// OnDisconnect closes the connectivity gate: sampling keeps the
// average window warm, but publishing is suppressed until reconnect.
func (m *ResourceMonitor) OnDisconnect() {
	m.connectionGate.Store(false)
}

// OnNodeConfigChanged rebuilds the system alert processors against a
// freshly reported rule set, the Go counterpart of ReceiveNodeConfig /
// OnNodeConfigChanged.
func (m *ResourceMonitor) OnNodeConfigChanged(rules *AlertRules) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.systemAlerts = m.buildSystemAlertProcessors(rules)
}

// StartInstanceMonitoring begins tracking one instance: an average
// series and, if rules are supplied, its own alert processors.
func (m *ResourceMonitor) StartInstanceMonitoring(instanceID string, params InstanceMonitorParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[instanceID]; ok {
		return coreerrors.AlreadyExistsf("monitoring: instance %s is already monitored", instanceID)
	}

	if err := m.average.startInstanceMonitoring(params.InstanceIdent); err != nil {
		return err
	}

	m.instances[instanceID] = &instanceEntry{
		ident:     params.InstanceIdent,
		runtimeID: params.RuntimeID,
		state:     InstanceStateUnknown,
		rules:     params.AlertRules,
		alerts:    m.buildInstanceAlertProcessors(params.InstanceIdent, params.AlertRules),
	}

	return nil
}

// UpdateInstanceState records the instance's last-known lifecycle
// state. Only Active instances are sample-failure logged — a stopped
// or still-activating instance failing to report usage is expected,
// not a fault.
func (m *ResourceMonitor) UpdateInstanceState(instanceID string, state InstanceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.instances[instanceID]
	if !ok {
		return coreerrors.NotFoundf("monitoring: instance %s is not monitored", instanceID)
	}

	entry.state = state

	return nil
}

// StopInstanceMonitoring stops tracking one instance and discards its
// average series and alert processors.
func (m *ResourceMonitor) StopInstanceMonitoring(instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.instances[instanceID]
	if !ok {
		return coreerrors.NotFoundf("monitoring: instance %s is not monitored", instanceID)
	}

	if err := m.average.stopInstanceMonitoring(entry.ident); err != nil {
		m.logger.Warn("average series missing on instance stop", zap.String("instance", instanceID))
	}

	delete(m.instances, instanceID)

	return nil
}

// GetAverageMonitoringData returns the currently averaged node and
// instance usage, stamped with the node ID and current time.
func (m *ResourceMonitor) GetAverageMonitoringData() NodeMonitoringData {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := m.average.data()
	data.Timestamp = time.Now()
	data.NodeID = m.nodeInfo.NodeID

	return data
}

// processMonitoring is the per-tick sequence: sample every monitored
// instance (running its alerts), sample the node, fold both into the
// average window, evaluate the node alerts, normalize, and publish if
// the connectivity gate is
// open. It mirrors ProcessMonitoring's order exactly, including
// running the gate check after alerts and averaging have already been
// updated from this tick's samples.
func (m *ResourceMonitor) processMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	sample := NodeMonitoringData{Timestamp: now, NodeID: m.nodeInfo.NodeID}

	for instanceID, entry := range m.instances {
		data, err := m.usageProvider.GetInstanceMonitoringData(instanceID)
		if err != nil {
			if entry.state == InstanceStateActive {
				m.logger.Error("failed to sample instance usage",
					zap.String("instance", instanceID), zap.Error(err))
			}
			continue
		}

		data.Timestamp = now
		data.CPU = m.cpuToDMIPs(data.CPU)
		entry.lastSampled = data

		metrics.RecordMonitorSample("instance")
		m.runAlerts(entry.alerts, data)

		sample.Instances = append(sample.Instances, InstanceMonitoringData{
			InstanceIdent:  entry.ident,
			RuntimeID:      entry.runtimeID,
			MonitoringData: data,
			State:          entry.state,
		})
	}

	nodeData, err := m.usageProvider.GetNodeMonitoringData(m.nodeInfo.Partitions)
	if err != nil {
		m.logger.Error("failed to sample node usage", zap.Error(err))
		return
	}

	nodeData.Timestamp = now
	nodeData.CPU = m.cpuToDMIPs(nodeData.CPU)
	sample.MonitoringData = nodeData

	metrics.RecordMonitorSample("node")

	if err := m.average.update(sample); err != nil {
		m.logger.Error("failed to update average window", zap.Error(err))
	}

	m.runAlerts(m.systemAlerts, nodeData)

	m.publishCurrentUsage(sample)

	if !m.connectionGate.Load() {
		return
	}

	normalizeMonitoringData(&sample)

	ctx, cancel := context.WithTimeout(context.Background(), m.config.PollPeriod)
	defer cancel()

	err = resilience.Retry(ctx, m.config.SendRetry, func() error {
		return m.monitoringSender.SendMonitoringData(sample)
	})
	if err != nil {
		m.logger.Error("failed to send monitoring data", zap.Error(err))
	}
}

func (m *ResourceMonitor) runAlerts(processors []*alertProcessor, data MonitoringData) {
	for _, p := range processors {
		value, ok := getCurrentUsage(p.id, data)
		if !ok {
			continue
		}
		p.checkAlertDetection(value, data.Timestamp)
	}
}

func (m *ResourceMonitor) publishCurrentUsage(sample NodeMonitoringData) {
	metrics.SetCurrentUsage(string(ResourceTypeCPU), "", sample.MonitoringData.CPU)
	metrics.SetCurrentUsage(string(ResourceTypeRAM), "", float64(sample.MonitoringData.RAM))
	metrics.SetCurrentUsage(string(ResourceTypeDownload), "", float64(sample.MonitoringData.Download))
	metrics.SetCurrentUsage(string(ResourceTypeUpload), "", float64(sample.MonitoringData.Upload))

	for _, instance := range sample.Instances {
		metrics.SetCurrentUsage(string(ResourceTypeCPU), instance.RuntimeID, instance.MonitoringData.CPU)
	}
}

// getCurrentUsage resolves the sampled value an alert processor's
// identifier refers to, matching GetCurrentUsage: CPU rounds to the
// nearest integer, RAM/Download/Upload are used directly, and a
// partition is looked up by name.
func getCurrentUsage(id ResourceIdentifier, data MonitoringData) (uint64, bool) {
	switch id.Type {
	case ResourceTypeCPU:
		return roundHalfUp(data.CPU), true
	case ResourceTypeRAM:
		return data.RAM, true
	case ResourceTypeDownload:
		return data.Download, true
	case ResourceTypeUpload:
		return data.Upload, true
	case ResourceTypePartition:
		for _, p := range data.Partitions {
			if p.Name == id.PartitionName {
				return p.UsedSize, true
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

// normalizeMonitoringData raises each node scalar to the maximum of
// its own value and the sum of all instance values, and each node
// partition to the maximum of its own value and any instance's usage
// of a partition by the same name, appending partitions the node
// itself did not report.
func normalizeMonitoringData(data *NodeMonitoringData) {
	var cpuSum float64
	var ramSum, downloadSum, uploadSum uint64

	for _, instance := range data.Instances {
		cpuSum += instance.MonitoringData.CPU
		ramSum += instance.MonitoringData.RAM
		downloadSum += instance.MonitoringData.Download
		uploadSum += instance.MonitoringData.Upload

		for _, p := range instance.MonitoringData.Partitions {
			if idx := findPartition(data.MonitoringData.Partitions, p.Name); idx >= 0 {
				if p.UsedSize > data.MonitoringData.Partitions[idx].UsedSize {
					data.MonitoringData.Partitions[idx].UsedSize = p.UsedSize
				}
			} else {
				data.MonitoringData.Partitions = append(data.MonitoringData.Partitions, p)
			}
		}
	}

	if cpuSum > data.MonitoringData.CPU {
		data.MonitoringData.CPU = cpuSum
	}
	if ramSum > data.MonitoringData.RAM {
		data.MonitoringData.RAM = ramSum
	}
	if downloadSum > data.MonitoringData.Download {
		data.MonitoringData.Download = downloadSum
	}
	if uploadSum > data.MonitoringData.Upload {
		data.MonitoringData.Upload = uploadSum
	}
}
