package core

// Metrics records domain counters.
type Metrics interface {
	IncConflict(dimension string)
	IncGradeAudit(action string)
	AddNotifications(kind string, n int)
}

type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) IncConflict(string)           {}
func (NopMetrics) IncGradeAudit(string)         {}
func (NopMetrics) AddNotifications(string, int) {}
