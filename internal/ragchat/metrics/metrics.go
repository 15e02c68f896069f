// Package metrics 提供 RAG 对话服务的业务指标收集。
// 所有方法对 nil 接收者安全，未注入指标时调用方无需判断。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics RAG 对话服务业务指标。
type Metrics struct {
	// 对话指标
	turnsTotal  atomic.Uint64
	turnsErrors atomic.Uint64

	// 检索指标
	retrievalTotal  atomic.Uint64
	retrievalErrors atomic.Uint64
	retrievalEmpty  atomic.Uint64 // 无命中的检索次数

	// 生成指标
	generationTotal  atomic.Uint64
	generationErrors atomic.Uint64
	timeouts         atomic.Uint64

	// 嵌入缓存
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	// 入库指标
	documentsIngested atomic.Uint64
	chunksTotal       atomic.Uint64
	chunksStored      atomic.Uint64

	durationMu         sync.Mutex
	retrievalDuration  float64
	generationDuration float64

	startTime time.Time
}

// New creates a Metrics instance.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordTurn 记录一次对话轮次。
func (m *Metrics) RecordTurn(err error, timeout bool) {
	if m == nil {
		return
	}
	m.turnsTotal.Add(1)
	if err != nil {
		m.turnsErrors.Add(1)
	}
	if timeout {
		m.timeouts.Add(1)
	}
}

// RecordRetrieval 记录检索操作。
func (m *Metrics) RecordRetrieval(duration time.Duration, hits int, err error) {
	if m == nil {
		return
	}
	m.retrievalTotal.Add(1)
	if err != nil {
		m.retrievalErrors.Add(1)
		return
	}
	if hits == 0 {
		m.retrievalEmpty.Add(1)
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordGeneration 记录 LLM 生成调用。
func (m *Metrics) RecordGeneration(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.generationTotal.Add(1)
	if err != nil {
		m.generationErrors.Add(1)
		return
	}

	m.durationMu.Lock()
	m.generationDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordCache 记录嵌入缓存命中情况。
func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
}

// RecordIngest 记录一次文档入库。
func (m *Metrics) RecordIngest(total, stored int) {
	if m == nil {
		return
	}
	m.documentsIngested.Add(1)
	m.chunksTotal.Add(uint64(total))
	m.chunksStored.Add(uint64(stored))
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TurnsTotal        uint64  `json:"turns_total"`
	TurnsErrors       uint64  `json:"turns_errors"`
	RetrievalTotal    uint64  `json:"retrieval_total"`
	RetrievalErrors   uint64  `json:"retrieval_errors"`
	RetrievalEmpty    uint64  `json:"retrieval_empty"`
	GenerationTotal   uint64  `json:"generation_total"`
	GenerationErrors  uint64  `json:"generation_errors"`
	Timeouts          uint64  `json:"timeouts"`
	CacheHits         uint64  `json:"cache_hits"`
	CacheMisses       uint64  `json:"cache_misses"`
	DocumentsIngested uint64  `json:"documents_ingested"`
	ChunksTotal       uint64  `json:"chunks_total"`
	ChunksStored      uint64  `json:"chunks_stored"`
	RetrievalSeconds  float64 `json:"retrieval_seconds"`
	GenerationSeconds float64 `json:"generation_seconds"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	m.durationMu.Lock()
	retrieval, generation := m.retrievalDuration, m.generationDuration
	m.durationMu.Unlock()

	return Snapshot{
		TurnsTotal:        m.turnsTotal.Load(),
		TurnsErrors:       m.turnsErrors.Load(),
		RetrievalTotal:    m.retrievalTotal.Load(),
		RetrievalErrors:   m.retrievalErrors.Load(),
		RetrievalEmpty:    m.retrievalEmpty.Load(),
		GenerationTotal:   m.generationTotal.Load(),
		GenerationErrors:  m.generationErrors.Load(),
		Timeouts:          m.timeouts.Load(),
		CacheHits:         m.cacheHits.Load(),
		CacheMisses:       m.cacheMisses.Load(),
		DocumentsIngested: m.documentsIngested.Load(),
		ChunksTotal:       m.chunksTotal.Load(),
		ChunksStored:      m.chunksStored.Load(),
		RetrievalSeconds:  retrieval,
		GenerationSeconds: generation,
		UptimeSeconds:     time.Since(m.startTime).Seconds(),
	}
}

// Export 导出 Prometheus 文本格式指标。
func (m *Metrics) Export(namespace string) string {
	s := m.Snapshot()

	var sb strings.Builder
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n", namespace, name, help)
		fmt.Fprintf(&sb, "# TYPE %s_%s counter\n", namespace, name)
		fmt.Fprintf(&sb, "%s_%s %d\n\n", namespace, name, v)
	}
	gauge := func(name, help string, v float64) {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n", namespace, name, help)
		fmt.Fprintf(&sb, "# TYPE %s_%s gauge\n", namespace, name)
		fmt.Fprintf(&sb, "%s_%s %.6f\n\n", namespace, name, v)
	}

	counter("turns_total", "Total number of chat turns.", s.TurnsTotal)
	counter("turns_errors_total", "Number of failed chat turns.", s.TurnsErrors)
	counter("retrieval_total", "Total number of retrievals.", s.RetrievalTotal)
	counter("retrieval_errors_total", "Number of retrieval errors.", s.RetrievalErrors)
	counter("retrieval_empty_total", "Number of retrievals without hits.", s.RetrievalEmpty)
	counter("generation_total", "Total number of chat completions.", s.GenerationTotal)
	counter("generation_errors_total", "Number of failed chat completions.", s.GenerationErrors)
	counter("timeouts_total", "Number of upstream calls that timed out.", s.Timeouts)
	counter("embedding_cache_hits_total", "Number of embedding cache hits.", s.CacheHits)
	counter("embedding_cache_misses_total", "Number of embedding cache misses.", s.CacheMisses)
	counter("documents_ingested_total", "Number of ingested documents.", s.DocumentsIngested)
	counter("chunks_total", "Number of chunks seen during ingestion.", s.ChunksTotal)
	counter("chunks_stored_total", "Number of chunks stored in the vector store.", s.ChunksStored)
	gauge("retrieval_duration_seconds_total", "Total retrieval duration.", s.RetrievalSeconds)
	gauge("generation_duration_seconds_total", "Total chat completion duration.", s.GenerationSeconds)
	gauge("uptime_seconds", "Service uptime.", s.UptimeSeconds)

	return sb.String()
}
