package monitoring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeUsageProvider struct {
	mu        sync.Mutex
	node      MonitoringData
	nodeErr   error
	instances map[string]MonitoringData
}

func newFakeUsageProvider() *fakeUsageProvider {
	return &fakeUsageProvider{instances: make(map[string]MonitoringData)}
}

func (f *fakeUsageProvider) GetNodeMonitoringData([]PartitionInfo) (MonitoringData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.node, f.nodeErr
}

func (f *fakeUsageProvider) GetInstanceMonitoringData(instanceID string) (MonitoringData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.instances[instanceID]
	if !ok {
		return MonitoringData{}, errNotFoundStub{}
	}
	return data, nil
}

type errNotFoundStub struct{}

func (errNotFoundStub) Error() string { return "instance not found" }

type fakeMonitoringSender struct {
	mu  sync.Mutex
	out []NodeMonitoringData
}

func (f *fakeMonitoringSender) SendMonitoringData(data NodeMonitoringData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, data)
	return nil
}

func (f *fakeMonitoringSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.out)
}

func testNodeInfo() NodeInfo {
	return NodeInfo{
		NodeID:   "node-1",
		MaxDMIPS: 2000,
		TotalRAM: 4096,
		Partitions: []PartitionInfo{
			{Name: "storage", TotalSize: 1000},
		},
	}
}

func TestResourceMonitorGatedPublishing(t *testing.T) {
	usage := newFakeUsageProvider()
	usage.node = MonitoringData{CPU: 10, RAM: 100}
	sender := &fakeMonitoringSender{}

	monitor, err := New(DefaultConfig(), testNodeInfo(), usage, sender, nil, nil, nil)
	require.NoError(t, err)

	// Disconnected: samples keep the average window warm but nothing
	// is published.
	monitor.processMonitoring()
	monitor.processMonitoring()
	require.Equal(t, 0, sender.count())

	monitor.OnConnect()
	monitor.processMonitoring()
	require.Equal(t, 1, sender.count())

	monitor.OnDisconnect()
	monitor.processMonitoring()
	require.Equal(t, 1, sender.count())
}

func TestResourceMonitorCPUScaledToDMIPS(t *testing.T) {
	usage := newFakeUsageProvider()
	usage.node = MonitoringData{CPU: 50}
	sender := &fakeMonitoringSender{}

	monitor, err := New(DefaultConfig(), testNodeInfo(), usage, sender, nil, nil, nil)
	require.NoError(t, err)
	monitor.OnConnect()

	monitor.processMonitoring()

	require.Len(t, sender.out, 1)
	// 50% of 2000 max DMIPS.
	require.InDelta(t, 1000.0, sender.out[0].MonitoringData.CPU, 0.0001)
}

func TestResourceMonitorSystemAlertRaisesOnSustainedBreach(t *testing.T) {
	usage := newFakeUsageProvider()
	usage.node = MonitoringData{RAM: 4000}
	sender := &fakeMonitoringSender{}
	alerts := &recordingSender{}

	rules := &AlertRules{RAM: &AlertRulePercents{MinTimeout: 0, MinThreshold: 10, MaxThreshold: 90}}

	monitor, err := New(DefaultConfig(), testNodeInfo(), usage, sender, alerts, rules, nil)
	require.NoError(t, err)
	monitor.OnConnect()

	monitor.processMonitoring()
	monitor.processMonitoring()

	require.Len(t, alerts.alerts, 1)
	require.Equal(t, QuotaAlertRaise, alerts.alerts[0].State)
	require.Equal(t, "ram", alerts.alerts[0].Parameter)
}

func TestResourceMonitorPartitionAlertSkippedWhenUnknown(t *testing.T) {
	usage := newFakeUsageProvider()
	sender := &fakeMonitoringSender{}

	rules := &AlertRules{Partitions: []PartitionAlertRule{
		{Name: "does-not-exist", AlertRulePercents: AlertRulePercents{MinThreshold: 1, MaxThreshold: 1}},
	}}

	monitor, err := New(DefaultConfig(), testNodeInfo(), usage, sender, nil, rules, nil)
	require.NoError(t, err)
	require.Empty(t, monitor.systemAlerts)
}

func TestResourceMonitorInstanceLifecycleAndSampleFailureLogging(t *testing.T) {
	usage := newFakeUsageProvider()
	usage.node = MonitoringData{}
	sender := &fakeMonitoringSender{}

	monitor, err := New(DefaultConfig(), testNodeInfo(), usage, sender, nil, nil, nil)
	require.NoError(t, err)

	ident := InstanceIdent{ItemID: "item", SubjectID: "subject", Instance: 1}
	require.NoError(t, monitor.StartInstanceMonitoring("inst-1", InstanceMonitorParams{InstanceIdent: ident}))
	require.Error(t, monitor.StartInstanceMonitoring("inst-1", InstanceMonitorParams{InstanceIdent: ident}))

	require.NoError(t, monitor.UpdateInstanceState("inst-1", InstanceStateActive))

	// The instance never reports usage: processMonitoring must not
	// panic, and the instance is simply absent from the published
	// sample for this tick.
	monitor.OnConnect()
	monitor.processMonitoring()

	require.NoError(t, monitor.StopInstanceMonitoring("inst-1"))
	require.Error(t, monitor.StopInstanceMonitoring("inst-1"))
	require.Error(t, monitor.UpdateInstanceState("inst-1", InstanceStateActive))
}

func TestResourceMonitorNormalizeMonitoringData(t *testing.T) {
	ident := InstanceIdent{ItemID: "a", SubjectID: "b", Instance: 1}
	data := NodeMonitoringData{
		MonitoringData: MonitoringData{
			CPU: 10, RAM: 100,
			Partitions: []PartitionUsage{{Name: "storage", UsedSize: 50}},
		},
		Instances: []InstanceMonitoringData{
			{
				InstanceIdent: ident,
				MonitoringData: MonitoringData{
					CPU: 20, RAM: 40,
					Partitions: []PartitionUsage{
						{Name: "storage", UsedSize: 80},
						{Name: "logs", UsedSize: 5},
					},
				},
			},
		},
	}

	normalizeMonitoringData(&data)

	require.InDelta(t, 20.0, data.MonitoringData.CPU, 0.0001)
	require.Equal(t, uint64(100), data.MonitoringData.RAM)
	require.Len(t, data.MonitoringData.Partitions, 2)

	byName := map[string]uint64{}
	for _, p := range data.MonitoringData.Partitions {
		byName[p.Name] = p.UsedSize
	}
	require.Equal(t, uint64(80), byName["storage"])
	require.Equal(t, uint64(5), byName["logs"])
}

func TestResourceMonitorStartStopIdempotency(t *testing.T) {
	usage := newFakeUsageProvider()
	sender := &fakeMonitoringSender{}

	monitor, err := New(Config{PollPeriod: 10 * time.Millisecond}, testNodeInfo(), usage, sender, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, monitor.Start(nil))
	require.Error(t, monitor.Start(nil))
	require.NoError(t, monitor.Stop())
	require.Error(t, monitor.Stop())
}

type fakeConnectionPublisher struct {
	subscribed ConnectionListener
}

func (f *fakeConnectionPublisher) SubscribeListener(listener ConnectionListener) {
	f.subscribed = listener
}

func (f *fakeConnectionPublisher) UnsubscribeListener(listener ConnectionListener) {
	if f.subscribed == listener {
		f.subscribed = nil
	}
}

func TestResourceMonitorSubscribesToConnectionPublisher(t *testing.T) {
	usage := newFakeUsageProvider()
	sender := &fakeMonitoringSender{}
	publisher := &fakeConnectionPublisher{}

	monitor, err := New(Config{PollPeriod: 10 * time.Millisecond}, testNodeInfo(), usage, sender, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, monitor.Start(publisher))
	require.Same(t, monitor, publisher.subscribed)

	publisher.subscribed.OnConnect()
	require.True(t, monitor.connectionGate.Load())

	require.NoError(t, monitor.Stop())
	require.Nil(t, publisher.subscribed)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	usage := newFakeUsageProvider()
	sender := &fakeMonitoringSender{}

	_, err := New(Config{}, testNodeInfo(), usage, sender, nil, nil, nil)
	require.Error(t, err)

	_, err = New(DefaultConfig(), testNodeInfo(), nil, sender, nil, nil, nil)
	require.Error(t, err)
}
