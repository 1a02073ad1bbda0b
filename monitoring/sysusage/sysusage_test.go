package sysusage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aosedge/aos_core_lib_go/monitoring/sysusage"
)

func TestProviderGetNodeInfoReportsTotalRAM(t *testing.T) {
	provider := sysusage.New(sysusage.DefaultConfig(nil))

	info, err := provider.GetNodeInfo()
	require.NoError(t, err)
	require.Greater(t, info.TotalRAM, uint64(0))
}

func TestProviderGetNodeMonitoringDataSamplesHost(t *testing.T) {
	provider := sysusage.New(sysusage.DefaultConfig(nil))

	data, err := provider.GetNodeMonitoringData(nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, data.CPU, 0.0)
}

func TestProviderGetInstanceMonitoringDataUnsupported(t *testing.T) {
	provider := sysusage.New(sysusage.DefaultConfig(nil))

	_, err := provider.GetInstanceMonitoringData("some-instance")
	require.Error(t, err)
}
