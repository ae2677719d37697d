// Package prometheus exports segpool metrics to Prometheus.
//
// Collector reports a pool's Stats snapshot on every scrape. Recorder
// implements segpool.MetricsCollector and counts individual requests.
//
//	reg := prom.NewRegistry()
//	rec := prometheus.NewRecorder("segpool")
//	rec.MustRegister(reg)
//	pool, _ := segpool.New(segpool.WithMetricsCollector(rec))
//	reg.MustRegister(prometheus.NewCollector("segpool", pool))
package prometheus

import (
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/segpool"
)

// StatsSource is anything that can report pool statistics. *segpool.Pool
// implements it.
type StatsSource interface {
	Stats() segpool.Stats
}

// Collector is a prometheus.Collector reading a pool's Stats on scrape.
// Stats is safe to call while the pool is in use.
type Collector struct {
	src StatsSource

	classes       *prom.Desc
	maxClass      *prom.Desc
	blocks        *prom.Desc
	reserved      *prom.Desc
	payload       *prom.Desc
	inUse         *prom.Desc
	peak          *prom.Desc
	limit         *prom.Desc
	allocations   *prom.Desc
	deallocations *prom.Desc
	failures      *prom.Desc
	violations    *prom.Desc
	refills       *prom.Desc
	live          *prom.Desc
}

// NewCollector creates a collector for src under the given namespace.
func NewCollector(namespace string, src StatsSource) *Collector {
	desc := func(name, help string) *prom.Desc {
		return prom.NewDesc(prom.BuildFQName(namespace, "", name), help, []string{"source"}, nil)
	}
	return &Collector{
		src:           src,
		classes:       desc("size_classes", "Number of size classes."),
		maxClass:      desc("max_class_bytes", "Size of the largest size class."),
		blocks:        desc("blocks", "Blocks held by the arena."),
		reserved:      desc("reserved_bytes", "Bytes reserved from the block source, block headers included."),
		payload:       desc("payload_bytes", "Bytes of reserved blocks usable for cells."),
		inUse:         desc("budget_bytes", "Bytes charged to the memory budget."),
		peak:          desc("budget_peak_bytes", "Highest value of budget_bytes."),
		limit:         desc("budget_limit_bytes", "Memory limit, 0 if unlimited."),
		allocations:   desc("allocations_total", "Successful allocations."),
		deallocations: desc("deallocations_total", "Successful deallocations."),
		failures:      desc("allocation_failures_total", "Allocations that could not obtain memory."),
		violations:    desc("contract_violations_total", "Rejected deallocations."),
		refills:       desc("refills_total", "Free-list refills."),
		live:          desc("live_cells", "Cells allocated and not yet freed."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prom.Desc) {
	ch <- c.classes
	ch <- c.maxClass
	ch <- c.blocks
	ch <- c.reserved
	ch <- c.payload
	ch <- c.inUse
	ch <- c.peak
	ch <- c.limit
	ch <- c.allocations
	ch <- c.deallocations
	ch <- c.failures
	ch <- c.violations
	ch <- c.refills
	ch <- c.live
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prom.Metric) {
	s := c.src.Stats()
	gauge := func(d *prom.Desc, v float64) {
		ch <- prom.MustNewConstMetric(d, prom.GaugeValue, v, s.Source)
	}
	counter := func(d *prom.Desc, v uint64) {
		ch <- prom.MustNewConstMetric(d, prom.CounterValue, float64(v), s.Source)
	}

	gauge(c.classes, float64(s.Classes))
	gauge(c.maxClass, float64(s.MaxClass))
	gauge(c.blocks, float64(s.Blocks))
	gauge(c.reserved, float64(s.BytesReserved))
	gauge(c.payload, float64(s.PayloadBytes))
	gauge(c.inUse, float64(s.BytesInUse))
	gauge(c.peak, float64(s.PeakBytes))
	gauge(c.limit, float64(s.MemoryLimit))
	counter(c.allocations, s.Allocations)
	counter(c.deallocations, s.Deallocations)
	counter(c.failures, s.Failures)
	counter(c.violations, s.Violations)
	counter(c.refills, s.Refills)
	gauge(c.live, float64(s.LiveCells))
}

// Recorder implements segpool.MetricsCollector with Prometheus metrics.
type Recorder struct {
	requests     *prom.CounterVec
	requestBytes prom.Histogram
	wasteBytes   prom.Counter
	refills      *prom.CounterVec
	refillCells  prom.Counter
	classes      prom.Counter
}

var _ segpool.MetricsCollector = (*Recorder)(nil)

// NewRecorder creates an unregistered recorder under the given namespace.
func NewRecorder(namespace string) *Recorder {
	return &Recorder{
		requests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Allocate and deallocate calls by operation and result.",
		}, []string{"op", "result"}),
		requestBytes: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "request_bytes",
			Help:      "Sizes of successful allocation requests.",
			Buckets:   prom.ExponentialBuckets(8, 2, 12),
		}),
		wasteBytes: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rounding_waste_bytes_total",
			Help:      "Bytes lost to rounding requests up to their class size.",
		}),
		refills: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "class_refills_total",
			Help:      "Free-list refills by class size.",
		}, []string{"class"}),
		refillCells: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "refill_cells_total",
			Help:      "Cells carved by refills.",
		}),
		classes: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "classes_created_total",
			Help:      "Size classes created.",
		}),
	}
}

// Collectors returns every metric of the recorder.
func (r *Recorder) Collectors() []prom.Collector {
	return []prom.Collector{r.requests, r.requestBytes, r.wasteBytes, r.refills, r.refillCells, r.classes}
}

// Register registers the recorder's metrics with reg.
func (r *Recorder) Register(reg prom.Registerer) error {
	for _, c := range r.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is Register that panics on error.
func (r *Recorder) MustRegister(reg prom.Registerer) {
	reg.MustRegister(r.Collectors()...)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordAllocate implements segpool.MetricsCollector.
func (r *Recorder) RecordAllocate(size, classSize int, err error) {
	r.requests.WithLabelValues("allocate", result(err)).Inc()
	if err != nil {
		return
	}
	r.requestBytes.Observe(float64(size))
	r.wasteBytes.Add(float64(classSize - size))
}

// RecordDeallocate implements segpool.MetricsCollector.
func (r *Recorder) RecordDeallocate(size, classSize int, err error) {
	r.requests.WithLabelValues("deallocate", result(err)).Inc()
}

// RecordRefill implements segpool.MetricsCollector.
func (r *Recorder) RecordRefill(classSize, cells int) {
	r.refills.WithLabelValues(strconv.Itoa(classSize)).Inc()
	r.refillCells.Add(float64(cells))
}

// RecordClassesCreated implements segpool.MetricsCollector.
func (r *Recorder) RecordClassesCreated(count int) {
	r.classes.Add(float64(count))
}
