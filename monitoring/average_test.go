package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAverageMonitorSamplingScenario(t *testing.T) {
	// poll_period=1s, average_window=4s -> window=4. CPU samples
	// 100,100,100,100,0 converge to (3*100+0)/4 = 75 before the
	// percentage-to-DMIPS scaling applied by the resource monitor.
	avg := initAverage(4)

	samples := []float64{100, 100, 100, 100, 0}
	for _, cpu := range samples {
		require.NoError(t, avg.update(NodeMonitoringData{MonitoringData: MonitoringData{CPU: cpu}}))
	}

	require.InDelta(t, 75.0, avg.data().MonitoringData.CPU, 0.0001)
}

func TestAverageConvergesToConstantStream(t *testing.T) {
	avg := initAverage(4)

	for i := 0; i < 20; i++ {
		require.NoError(t, avg.update(NodeMonitoringData{MonitoringData: MonitoringData{
			CPU:      42,
			RAM:      1000,
			Download: 500,
			Upload:   250,
			Partitions: []PartitionUsage{
				{Name: "storage", UsedSize: 777},
			},
		}}))
	}

	data := avg.data().MonitoringData
	require.InDelta(t, 42.0, data.CPU, 0.0001)
	require.Equal(t, uint64(1000), data.RAM)
	require.Equal(t, uint64(500), data.Download)
	require.Equal(t, uint64(250), data.Upload)
	require.Len(t, data.Partitions, 1)
	require.Equal(t, uint64(777), data.Partitions[0].UsedSize)
}

func TestAverageFirstSampleIsImmediateValue(t *testing.T) {
	avg := initAverage(4)

	require.NoError(t, avg.update(NodeMonitoringData{MonitoringData: MonitoringData{CPU: 64, RAM: 2048}}))

	data := avg.data().MonitoringData
	require.InDelta(t, 64.0, data.CPU, 0.0001)
	require.Equal(t, uint64(2048), data.RAM)
}

func TestAverageWindowClampedToOne(t *testing.T) {
	avg := initAverage(0)
	require.Equal(t, uint64(1), avg.window)

	require.NoError(t, avg.update(NodeMonitoringData{MonitoringData: MonitoringData{CPU: 10}}))
	require.NoError(t, avg.update(NodeMonitoringData{MonitoringData: MonitoringData{CPU: 20}}))

	// Window of 1 is an unsmoothed passthrough: each update replaces
	// the prior value outright.
	require.InDelta(t, 20.0, avg.data().MonitoringData.CPU, 0.0001)
}

func TestAveragePartitionMergedByName(t *testing.T) {
	avg := initAverage(2)

	require.NoError(t, avg.update(NodeMonitoringData{MonitoringData: MonitoringData{
		Partitions: []PartitionUsage{{Name: "storage", UsedSize: 100}},
	}}))
	require.NoError(t, avg.update(NodeMonitoringData{MonitoringData: MonitoringData{
		Partitions: []PartitionUsage{
			{Name: "storage", UsedSize: 200},
			{Name: "state", UsedSize: 50},
		},
	}}))

	data := avg.data().MonitoringData
	require.Len(t, data.Partitions, 2)

	byName := map[string]uint64{}
	for _, p := range data.Partitions {
		byName[p.Name] = p.UsedSize
	}

	// storage: init at 100*2=200, then 200-100+200=300, /2 = 150.
	require.Equal(t, uint64(150), byName["storage"])
	// state only appears on the second sample; by then the series as a
	// whole is already initialized, so it folds in from zero using the
	// steady-state formula rather than the first-sample multiply: 0-0+50=50, /2 = 25.
	require.Equal(t, uint64(25), byName["state"])
}

func TestAverageInstanceLifecycle(t *testing.T) {
	avg := initAverage(4)
	ident := InstanceIdent{ItemID: "item", SubjectID: "subject", Instance: 1}

	require.NoError(t, avg.startInstanceMonitoring(ident))
	require.Error(t, avg.startInstanceMonitoring(ident))

	require.NoError(t, avg.update(NodeMonitoringData{
		Instances: []InstanceMonitoringData{
			{InstanceIdent: ident, MonitoringData: MonitoringData{CPU: 10}},
		},
	}))

	data := avg.data()
	require.Len(t, data.Instances, 1)
	require.InDelta(t, 10.0, data.Instances[0].MonitoringData.CPU, 0.0001)

	require.NoError(t, avg.stopInstanceMonitoring(ident))
	require.Empty(t, avg.data().Instances)
}

func TestAverageUpdateUnknownInstanceIsNotFound(t *testing.T) {
	avg := initAverage(4)
	ident := InstanceIdent{ItemID: "item", SubjectID: "subject", Instance: 1}

	err := avg.update(NodeMonitoringData{
		Instances: []InstanceMonitoringData{
			{InstanceIdent: ident, MonitoringData: MonitoringData{CPU: 10}},
		},
	})
	require.Error(t, err)
}

func TestRoundHalfUp(t *testing.T) {
	require.Equal(t, uint64(2), roundHalfUp(1.5))
	require.Equal(t, uint64(1), roundHalfUp(1.4))
	require.Equal(t, uint64(0), roundHalfUp(-1))
}

func TestAverageTimestampIsCallerSupplied(t *testing.T) {
	avg := initAverage(2)
	now := time.Now()

	require.NoError(t, avg.update(NodeMonitoringData{Timestamp: now, MonitoringData: MonitoringData{CPU: 1}}))
	// average tracks only the scalar/partition series; timestamping the
	// published sample is the resource monitor's job.
	require.True(t, avg.data().Timestamp.IsZero())
}
