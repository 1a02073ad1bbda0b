package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	alerts []QuotaAlert
}

func (s *recordingSender) SendAlert(alert QuotaAlert) error {
	s.alerts = append(s.alerts, alert)
	return nil
}

func TestAlertProcessorRaiseContinueFall(t *testing.T) {
	sender := &recordingSender{}
	rule := AlertRulePoints{MinTimeout: 2 * time.Second, MinThreshold: 50, MaxThreshold: 85}
	id := ResourceIdentifier{Level: ResourceLevelSystem, Type: ResourceTypeCPU}
	p := newAlertProcessor(id, rule, sender, QuotaAlert{NodeID: "node-1"})

	base := time.Unix(0, 0)
	samples := []struct {
		offset time.Duration
		value  uint64
	}{
		{0, 30},
		{1 * time.Second, 90},
		{3 * time.Second, 95},
		{4 * time.Second, 93},
		{6 * time.Second, 70},
		{8 * time.Second, 40},
		{10 * time.Second, 40},
	}

	for _, s := range samples {
		p.checkAlertDetection(s.value, base.Add(s.offset))
	}

	require.Len(t, sender.alerts, 3)

	require.Equal(t, QuotaAlertRaise, sender.alerts[0].State)
	require.Equal(t, uint64(95), sender.alerts[0].Value)
	require.Equal(t, base.Add(3*time.Second), sender.alerts[0].Timestamp)

	require.Equal(t, QuotaAlertContinue, sender.alerts[1].State)
	require.Equal(t, uint64(70), sender.alerts[1].Value)
	require.Equal(t, base.Add(6*time.Second), sender.alerts[1].Timestamp)

	require.Equal(t, QuotaAlertFall, sender.alerts[2].State)
	require.Equal(t, uint64(40), sender.alerts[2].Value)
	require.Equal(t, base.Add(10*time.Second), sender.alerts[2].Timestamp)
}

func TestAlertProcessorNoRaiseBelowMinTimeout(t *testing.T) {
	sender := &recordingSender{}
	rule := AlertRulePoints{MinTimeout: 2 * time.Second, MinThreshold: 50, MaxThreshold: 85}
	p := newAlertProcessor(ResourceIdentifier{Type: ResourceTypeCPU}, rule, sender, QuotaAlert{})

	base := time.Unix(0, 0)
	p.checkAlertDetection(90, base)
	p.checkAlertDetection(90, base.Add(time.Second))

	require.Empty(t, sender.alerts)
}

func TestAlertProcessorDropBelowMaxResetsCrossing(t *testing.T) {
	sender := &recordingSender{}
	rule := AlertRulePoints{MinTimeout: 2 * time.Second, MinThreshold: 50, MaxThreshold: 85}
	p := newAlertProcessor(ResourceIdentifier{Type: ResourceTypeCPU}, rule, sender, QuotaAlert{})

	base := time.Unix(0, 0)
	p.checkAlertDetection(90, base)
	p.checkAlertDetection(80, base.Add(time.Second))
	p.checkAlertDetection(90, base.Add(2*time.Second))
	p.checkAlertDetection(90, base.Add(3*time.Second))
	p.checkAlertDetection(90, base.Add(4*time.Second))

	// The drop at t=1s clears the crossing timer, so the crossing that
	// finally raises starts counting again from t=2s, not t=0s.
	require.Len(t, sender.alerts, 1)
	require.Equal(t, base.Add(4*time.Second), sender.alerts[0].Timestamp)
}

func TestAlertProcessorPartitionParameterUsesPartitionName(t *testing.T) {
	sender := &recordingSender{}
	rule := AlertRulePoints{MinThreshold: 1, MaxThreshold: 1}
	id := ResourceIdentifier{Level: ResourceLevelSystem, Type: ResourceTypePartition, PartitionName: "storage"}
	p := newAlertProcessor(id, rule, sender, QuotaAlert{NodeID: "node-1"})

	base := time.Unix(0, 0)
	p.checkAlertDetection(5, base)
	p.checkAlertDetection(5, base.Add(time.Second))

	require.Len(t, sender.alerts, 1)
	require.Equal(t, "storage", sender.alerts[0].Parameter)
}

func TestAlertProcessorInstanceIdentCarriedFromIdentifier(t *testing.T) {
	sender := &recordingSender{}
	rule := AlertRulePoints{MinThreshold: 1, MaxThreshold: 1}
	ident := InstanceIdent{ItemID: "item", SubjectID: "subject", Instance: 2}
	id := ResourceIdentifier{Level: ResourceLevelInstance, Type: ResourceTypeRAM, InstanceIdent: &ident}
	p := newAlertProcessor(id, rule, sender, QuotaAlert{})

	base := time.Unix(0, 0)
	p.checkAlertDetection(5, base)
	p.checkAlertDetection(5, base.Add(time.Second))

	require.Len(t, sender.alerts, 1)
	require.NotNil(t, sender.alerts[0].InstanceIdent)
	require.Equal(t, ident, *sender.alerts[0].InstanceIdent)
}
