package monitoring

import (
	"sync"
	"time"

	"github.com/aosedge/aos_core_lib_go/infrastructure/metrics"
)

// alertProcessor tracks one monitored quantity's threshold crossings
// with hysteresis, the Go counterpart of
// original_source/.../monitoring/alertprocessor.cpp's AlertProcessor.
// It is structured like infrastructure/resilience's CircuitBreaker: a
// mutex-guarded state machine entered through a single call.
type alertProcessor struct {
	mu sync.Mutex

	id       ResourceIdentifier
	sender   AlertSender
	template QuotaAlert

	minTimeout   time.Duration
	minThreshold uint64
	maxThreshold uint64

	alertCondition   bool
	maxThresholdTime time.Time
	minThresholdTime time.Time
}

// newAlertProcessor creates a processor for id, evaluating rule against
// samples and publishing transitions through sender. template carries
// the node ID or instance ident to stamp onto every emitted alert.
func newAlertProcessor(id ResourceIdentifier, rule AlertRulePoints, sender AlertSender, template QuotaAlert) *alertProcessor {
	template.Parameter = id.parameterName()
	template.InstanceIdent = id.InstanceIdent

	return &alertProcessor{
		id:           id,
		sender:       sender,
		template:     template,
		minTimeout:   rule.MinTimeout,
		minThreshold: rule.MinThreshold,
		maxThreshold: rule.MaxThreshold,
	}
}

// checkAlertDetection feeds one sample into the state machine. While
// calm (below the max threshold's sustained crossing) it watches for a
// raise; once raised it watches for a sustained fall back below the
// min threshold, emitting a continue alert if the raised condition
// persists across another minTimeout window.
func (p *alertProcessor) checkAlertDetection(value uint64, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.alertCondition {
		p.handleMaxThreshold(value, now)
	} else {
		p.handleMinThreshold(value, now)
	}
}

func (p *alertProcessor) handleMaxThreshold(value uint64, now time.Time) {
	if value >= p.maxThreshold {
		switch {
		case p.maxThresholdTime.IsZero():
			p.maxThresholdTime = now
		case now.Sub(p.maxThresholdTime) >= p.minTimeout:
			p.sendAlert(now, value, QuotaAlertRaise)
			p.alertCondition = true
			p.maxThresholdTime = now
			p.minThresholdTime = time.Time{}
		}

		return
	}

	if !p.maxThresholdTime.IsZero() {
		p.maxThresholdTime = time.Time{}
	}
}

func (p *alertProcessor) handleMinThreshold(value uint64, now time.Time) {
	if value >= p.minThreshold {
		p.minThresholdTime = time.Time{}

		if !p.maxThresholdTime.IsZero() && now.Sub(p.maxThresholdTime) >= p.minTimeout {
			p.sendAlert(now, value, QuotaAlertContinue)
			p.maxThresholdTime = now
		}

		return
	}

	if p.minThresholdTime.IsZero() {
		p.minThresholdTime = now
	}

	if now.Sub(p.minThresholdTime) >= p.minTimeout {
		p.sendAlert(now, value, QuotaAlertFall)
		p.alertCondition = false
		p.minThresholdTime = now
		p.maxThresholdTime = time.Time{}
	}
}

func (p *alertProcessor) sendAlert(now time.Time, value uint64, state QuotaAlertState) {
	alert := p.template
	alert.Timestamp = now
	alert.Value = value
	alert.State = state

	direction := "raised"
	if state == QuotaAlertFall {
		direction = "cleared"
	}
	metrics.RecordMonitorAlert(alert.Parameter, direction)

	// alertprocessor.cpp logs and swallows a send failure rather than
	// propagating it: a dropped alert must not stall the next
	// threshold evaluation.
	_ = p.sender.SendAlert(alert)
}
