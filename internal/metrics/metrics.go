package metrics

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(float64)
}

type Metrics struct {
	OrdersPlaced       Counter
	OrdersFailed       Counter
	CyclesOpened       Counter
	CyclesClosed       Counter
	ChaseAttempts      Counter
	CancelRaces        Counter
	StateInconsistency Counter
	SignalsFired       Counter
	OpenEdge           Gauge
	CloseEdge          Gauge
	HeldQty            Gauge
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopGauge struct{}

func (noopGauge) Set(float64) {}

func NewNoop() *Metrics {
	c := noopCounter{}
	g := noopGauge{}
	return &Metrics{
		OrdersPlaced:       c,
		OrdersFailed:       c,
		CyclesOpened:       c,
		CyclesClosed:       c,
		ChaseAttempts:      c,
		CancelRaces:        c,
		StateInconsistency: c,
		SignalsFired:       c,
		OpenEdge:           g,
		CloseEdge:          g,
		HeldQty:            g,
	}
}
