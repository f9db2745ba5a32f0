package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-p2pnet/pkg/interfaces/transport"
)

var (
	descSent = prometheus.NewDesc(namespace+"_transport_units_sent_total",
		"Data units sent for the first time.", []string{"source"}, nil)
	descRetransmits = prometheus.NewDesc(namespace+"_transport_retransmits_total",
		"Retransmissions after timeout or negative acknowledgment.", []string{"source"}, nil)
	descNacked = prometheus.NewDesc(namespace+"_transport_nacks_total",
		"Negative acknowledgments received.", []string{"source"}, nil)
	descExhausted = prometheus.NewDesc(namespace+"_transport_retry_exhausted_total",
		"Sends that failed after exhausting the retry budget.", []string{"source"}, nil)
	descDelivered = prometheus.NewDesc(namespace+"_transport_units_delivered_total",
		"Units delivered in order.", []string{"source"}, nil)
	descDuplicates = prometheus.NewDesc(namespace+"_transport_duplicates_total",
		"Duplicate units discarded.", []string{"source", "layer"}, nil)
	descGaps = prometheus.NewDesc(namespace+"_transport_gaps_total",
		"Sequence gaps reported to the consumer.", []string{"source"}, nil)
	descCorrupted = prometheus.NewDesc(namespace+"_transport_corrupted_total",
		"Units discarded because the integrity check failed.", []string{"source"}, nil)
)

// TransportCollector 抓取时读取各 StatsSource 的可靠传输统计
type TransportCollector struct {
	mu      sync.RWMutex
	sources map[string]transport.StatsSource
}

var _ prometheus.Collector = (*TransportCollector)(nil)

// NewTransportCollector 创建收集器
func NewTransportCollector() *TransportCollector {
	return &TransportCollector{sources: make(map[string]transport.StatsSource)}
}

// Add 注册统计来源，同名来源被替换
func (c *TransportCollector) Add(name string, src transport.StatsSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[name] = src
}

// Remove 移除统计来源
func (c *TransportCollector) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, name)
}

// Describe 实现 prometheus.Collector
func (c *TransportCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descSent, descRetransmits, descNacked, descExhausted,
		descDelivered, descDuplicates, descGaps, descCorrupted,
	} {
		ch <- d
	}
}

// Collect 实现 prometheus.Collector
func (c *TransportCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, src := range c.sources {
		seq := src.SequenceStats()
		ret := src.RetryStats()
		integ := src.IntegrityStats()

		counter := func(d *prometheus.Desc, v uint64, labels ...string) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), append([]string{name}, labels...)...)
		}
		counter(descSent, ret.Sent)
		counter(descRetransmits, ret.Retransmits)
		counter(descNacked, ret.Nacked)
		counter(descExhausted, ret.Exhausted)
		counter(descDelivered, seq.Delivered)
		counter(descDuplicates, seq.Duplicates, "sequencing")
		counter(descDuplicates, ret.Duplicates, "byzantine")
		counter(descGaps, seq.Gaps)
		counter(descCorrupted, integ.Corrupted)
	}
}
