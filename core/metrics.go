package core

import "time"

// Metrics receives pipeline measurements. *observability.PipelineCollector
// satisfies it.
type Metrics interface {
	ObserveThrottleWait(d time.Duration)
	IncResolution(kind, source string)
	AddRecordsFetched(n int)
	SetEntities(n int)
	SetMemoHitRatio(cache string, ratio float64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveThrottleWait(time.Duration) {}
func (noopMetrics) IncResolution(string, string)      {}
func (noopMetrics) AddRecordsFetched(int)             {}
func (noopMetrics) SetEntities(int)                   {}
func (noopMetrics) SetMemoHitRatio(string, float64)   {}
