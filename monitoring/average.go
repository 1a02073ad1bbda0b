package monitoring

import (
	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
)

// roundHalfUp matches original_source/.../monitoring/average.cpp's
// Round<T> template: truncation after adding 0.5, used for every
// integer-typed metric. CPU has its own template specialisation there
// (plain division, never rounded) because it is a double.
func roundHalfUp(value float64) uint64 {
	if value < 0 {
		return 0
	}
	return uint64(value + 0.5)
}

// updateUint folds newValue into value (stored scaled by window) the
// way average.cpp's UpdateValue<T> does for every integer-typed metric:
// each step first un-scales by the rounded current average, then adds
// the raw new sample back in — so the stored state is always an
// integer, never a float accumulator.
func updateUint(value, newValue, window uint64, initialized bool) uint64 {
	if !initialized {
		return newValue * window
	}
	return value - roundHalfUp(float64(value)/float64(window)) + newValue
}

// updateFloat is the CPU-only counterpart: average.cpp's GetValue<double>
// specialisation never rounds, so CPU's scaled state stays an exact
// float throughout.
func updateFloat(value, newValue, window float64, initialized bool) float64 {
	if !initialized {
		return newValue * window
	}
	return value - value/window + newValue
}

// averageData holds one tracked series (the node's own, or one
// instance's), scaled by the window count — average.cpp avoids keeping
// a running sample buffer by storing value*W and folding each new
// sample in place.
type averageData struct {
	initialized bool
	cpu         float64
	ram         uint64
	download    uint64
	upload      uint64
	partitions  []PartitionUsage
}

func (d *averageData) update(sample MonitoringData, window uint64) {
	w := float64(window)

	d.cpu = updateFloat(d.cpu, sample.CPU, w, d.initialized)
	d.ram = updateUint(d.ram, sample.RAM, window, d.initialized)
	d.download = updateUint(d.download, sample.Download, window, d.initialized)
	d.upload = updateUint(d.upload, sample.Upload, window, d.initialized)

	for _, p := range sample.Partitions {
		idx := findPartition(d.partitions, p.Name)
		if idx < 0 {
			d.partitions = append(d.partitions, PartitionUsage{Name: p.Name})
			idx = len(d.partitions) - 1
		}
		d.partitions[idx].UsedSize = updateUint(d.partitions[idx].UsedSize, p.UsedSize, window, d.initialized)
	}

	d.initialized = true
}

func (d *averageData) get(window uint64) MonitoringData {
	w := float64(window)

	data := MonitoringData{
		CPU:      d.cpu / w,
		RAM:      roundHalfUp(float64(d.ram) / w),
		Download: roundHalfUp(float64(d.download) / w),
		Upload:   roundHalfUp(float64(d.upload) / w),
	}

	data.Partitions = make([]PartitionUsage, len(d.partitions))
	for i, p := range d.partitions {
		data.Partitions[i] = PartitionUsage{Name: p.Name, UsedSize: roundHalfUp(float64(p.UsedSize) / w)}
	}

	return data
}

func findPartition(partitions []PartitionUsage, name string) int {
	for i := range partitions {
		if partitions[i].Name == name {
			return i
		}
	}
	return -1
}

// average implements the moving-average filter: a fixed window count
// W, an all-zeros-until-first-sample node series, and one series per
// currently-monitored instance.
type average struct {
	window    uint64
	node      averageData
	instances map[InstanceIdent]*averageData
}

// initAverage creates a filter with the given window count, clamped to
// at least 1.
func initAverage(windowCount uint64) *average {
	if windowCount < 1 {
		windowCount = 1
	}

	return &average{
		window:    windowCount,
		instances: make(map[InstanceIdent]*averageData),
	}
}

// update folds one node sample into the node series, and each carried
// instance sample into that instance's own series. A sample for an
// instance whose series was never started via startInstanceMonitoring
// is a not-found error, matching average.cpp's Average::Update.
func (a *average) update(nodeMonitoring NodeMonitoringData) error {
	a.node.update(nodeMonitoring.MonitoringData, a.window)

	for _, instance := range nodeMonitoring.Instances {
		series, ok := a.instances[instance.InstanceIdent]
		if !ok {
			return coreerrors.NotFoundf("monitoring: average series for instance %+v not started", instance.InstanceIdent)
		}
		series.update(instance.MonitoringData, a.window)
	}

	return nil
}

// data returns the current averaged node and instance series.
func (a *average) data() NodeMonitoringData {
	out := NodeMonitoringData{MonitoringData: a.node.get(a.window)}

	for ident, series := range a.instances {
		out.Instances = append(out.Instances, InstanceMonitoringData{
			InstanceIdent:  ident,
			MonitoringData: series.get(a.window),
		})
	}

	return out
}

// startInstanceMonitoring begins tracking ident's series, initialised
// to all-zeros.
func (a *average) startInstanceMonitoring(ident InstanceIdent) error {
	if _, ok := a.instances[ident]; ok {
		return coreerrors.AlreadyExistsf("monitoring: average series for instance %+v already started", ident)
	}
	a.instances[ident] = &averageData{}
	return nil
}

// stopInstanceMonitoring drops ident's series.
func (a *average) stopInstanceMonitoring(ident InstanceIdent) error {
	delete(a.instances, ident)
	return nil
}
