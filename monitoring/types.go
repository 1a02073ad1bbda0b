// Package monitoring samples node and per-instance resource usage on a
// fixed cadence, folds it into a moving-average window, evaluates
// threshold-based alert rules with hysteresis, and publishes the result
// while gated on connectivity. It is the Go-native sibling of
// aosedge/aos_core_lib_cpp's common/monitoring subtree.
package monitoring

import "time"

// InstanceIdent identifies one workload instance.
type InstanceIdent struct {
	ItemID    string
	SubjectID string
	Instance  uint64
}

// InstanceState mirrors the lifecycle states a workload instance moves
// through; only Active affects UpdateInstanceState's log-suppression
// behaviour.
type InstanceState int

const (
	InstanceStateUnknown InstanceState = iota
	InstanceStateActivating
	InstanceStateActive
	InstanceStateInactive
	InstanceStateFailed
)

func (s InstanceState) String() string {
	switch s {
	case InstanceStateActivating:
		return "activating"
	case InstanceStateActive:
		return "active"
	case InstanceStateInactive:
		return "inactive"
	case InstanceStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PartitionUsage is the used-size sample for one named partition.
type PartitionUsage struct {
	Name     string
	UsedSize uint64
}

// MonitoringData is one sample's scalars plus partition usages. A
// ResourceUsageProvider reports CPU as a percentage; ResourceMonitor
// scales it to DMIPS before the sample is averaged, alerted on or sent.
type MonitoringData struct {
	Timestamp  time.Time
	CPU        float64
	RAM        uint64
	Partitions []PartitionUsage
	Download   uint64
	Upload     uint64
}

// InstanceMonitoringData is one instance's latest sample plus its
// identity and last-known lifecycle state.
type InstanceMonitoringData struct {
	InstanceIdent  InstanceIdent
	RuntimeID      string
	MonitoringData MonitoringData
	State          InstanceState
}

// NodeMonitoringData is the top-level sample published per tick: the
// node's own usage plus every currently-monitored instance's usage.
type NodeMonitoringData struct {
	Timestamp      time.Time
	NodeID         string
	MonitoringData MonitoringData
	Instances      []InstanceMonitoringData
}

// PartitionInfo describes one node storage partition's static layout.
type PartitionInfo struct {
	Name      string
	Types     []string
	Path      string
	TotalSize uint64
}

// NodeInfo is the node snapshot taken at Init: identity, CPU/RAM budget,
// and partition inventory.
type NodeInfo struct {
	NodeID     string
	MaxDMIPS   uint64
	TotalRAM   uint64
	Partitions []PartitionInfo
}

// AlertRulePercents is a threshold rule expressed as a percentage of a
// resource's total capacity (CPU, RAM, partitions).
type AlertRulePercents struct {
	MinTimeout   time.Duration
	MinThreshold float64
	MaxThreshold float64
}

// AlertRulePoints is a threshold rule already expressed in the
// resource's native absolute units (download/upload byte counters, or
// any AlertRulePercents rule after conversion against a known total).
type AlertRulePoints struct {
	MinTimeout   time.Duration
	MinThreshold uint64
	MaxThreshold uint64
}

// ToPoints converts a percentage-of-total rule to absolute units given
// the resource's total capacity.
func (r AlertRulePercents) ToPoints(total uint64) AlertRulePoints {
	return AlertRulePoints{
		MinTimeout:   r.MinTimeout,
		MinThreshold: uint64(float64(total) * r.MinThreshold / 100.0),
		MaxThreshold: uint64(float64(total) * r.MaxThreshold / 100.0),
	}
}

// PartitionAlertRule is a percentage-based rule scoped to one named
// partition.
type PartitionAlertRule struct {
	AlertRulePercents
	Name string
}

// AlertRules is the full set of rules a node or instance can configure.
// RAM and CPU (and each named partition) are percentage-of-total; the
// network counters are absolute from the start, since they have no
// fixed total to measure a percentage against.
type AlertRules struct {
	RAM        *AlertRulePercents
	CPU        *AlertRulePercents
	Partitions []PartitionAlertRule
	Download   *AlertRulePoints
	Upload     *AlertRulePoints
}

// InstanceMonitorParams is the per-instance configuration passed to
// StartInstanceMonitoring.
type InstanceMonitorParams struct {
	InstanceIdent InstanceIdent
	RuntimeID     string
	AlertRules    *AlertRules
}

// ResourceLevel distinguishes system-wide from per-instance resource
// identifiers.
type ResourceLevel string

const (
	ResourceLevelSystem   ResourceLevel = "system"
	ResourceLevelInstance ResourceLevel = "instance"
)

// ResourceType names which scalar or partition an alert processor
// tracks.
type ResourceType string

const (
	ResourceTypeCPU       ResourceType = "cpu"
	ResourceTypeRAM       ResourceType = "ram"
	ResourceTypeDownload  ResourceType = "download"
	ResourceTypeUpload    ResourceType = "upload"
	ResourceTypePartition ResourceType = "partition"
)

// ResourceIdentifier names one monitored quantity: a level and type,
// plus an optional partition name (only meaningful for
// ResourceTypePartition) and an optional instance ident (only
// meaningful for ResourceLevelInstance).
type ResourceIdentifier struct {
	Level         ResourceLevel
	Type          ResourceType
	PartitionName string
	InstanceIdent *InstanceIdent
}

// parameterName returns the partition name if set, otherwise the
// resource type's string form — the "parameter" field stamped onto
// emitted alerts.
func (id ResourceIdentifier) parameterName() string {
	if id.PartitionName != "" {
		return id.PartitionName
	}
	return string(id.Type)
}

// QuotaAlertState is the transition an alert processor just emitted.
type QuotaAlertState string

const (
	QuotaAlertRaise    QuotaAlertState = "raise"
	QuotaAlertContinue QuotaAlertState = "continue"
	QuotaAlertFall     QuotaAlertState = "fall"
)

// QuotaAlert is the record handed to the alert sender: a template
// (node id or instance ident plus parameter) stamped with the
// crossing's timestamp, value, and state.
type QuotaAlert struct {
	NodeID        string
	InstanceIdent *InstanceIdent
	Parameter     string
	Timestamp     time.Time
	Value         uint64
	State         QuotaAlertState
}

// NodeInfoProvider snapshots static node identity and capacity.
type NodeInfoProvider interface {
	GetNodeInfo() (NodeInfo, error)
}

// ResourceUsageProvider samples live node and instance usage. CPU is
// reported as a percentage (0-100); the caller scales it to DMIPS.
type ResourceUsageProvider interface {
	GetNodeMonitoringData(partitions []PartitionInfo) (MonitoringData, error)
	GetInstanceMonitoringData(instanceID string) (MonitoringData, error)
}

// MonitoringSender publishes a completed node sample.
type MonitoringSender interface {
	SendMonitoringData(data NodeMonitoringData) error
}

// AlertSender publishes one quota-alert transition.
type AlertSender interface {
	SendAlert(alert QuotaAlert) error
}

// ConnectionPublisher lets the resource monitor subscribe to
// connectivity events gating publication.
type ConnectionPublisher interface {
	SubscribeListener(listener ConnectionListener)
	UnsubscribeListener(listener ConnectionListener)
}

// ConnectionListener receives connectivity transitions.
type ConnectionListener interface {
	OnConnect()
	OnDisconnect()
}
