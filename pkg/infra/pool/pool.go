package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Type defines the type of worker pool.
type Type string

const (
	// IngestPool 文档分块入库池
	IngestPool Type = "ingest"
	// BackgroundPool 后台任务池（会话回收等）
	BackgroundPool Type = "background"
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// PreAlloc 是否预分配内存
	PreAlloc bool
	// Nonblocking 提交任务是否非阻塞（若池满则返回错误）
	Nonblocking bool
	// MaxBlockingTasks 当 Nonblocking=false 时，最大等待任务数（0 表示无限制）
	MaxBlockingTasks int
	// PanicHandler 恐慌处理函数
	PanicHandler func(interface{})
}

// IngestPoolConfig 返回入库池配置，容量即并发入库的分块数。
func IngestPoolConfig(workers int) *Config {
	if workers <= 0 {
		workers = 1
	}
	return &Config{
		Capacity:       workers,
		ExpiryDuration: 10 * time.Second,
		Nonblocking:    false,
	}
}

// BackgroundPoolConfig 返回后台任务池配置
func BackgroundPoolConfig() *Config {
	return &Config{
		Capacity:         4,
		ExpiryDuration:   60 * time.Second,
		Nonblocking:      true,
		MaxBlockingTasks: 16,
	}
}

// Pool represents a worker pool.
type Pool struct {
	name     string
	typ      Type
	pool     *ants.Pool
	stats    poolStatsCounter
	closed   atomic.Bool
	closedMu sync.Mutex
}

// poolStatsCounter 内部统计计数器
type poolStatsCounter struct {
	SubmittedTasks atomic.Int64
	CompletedTasks atomic.Int64
	RejectedTasks  atomic.Int64
	PanicRecovered atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	SubmittedTasks int64 `json:"submitted"` // 已提交任务数
	CompletedTasks int64 `json:"completed"` // 已完成任务数
	RejectedTasks  int64 `json:"rejected"`  // 拒绝任务数
	PanicRecovered int64 `json:"panics"`    // 恢复的 panic 数
	Running        int   `json:"running"`
	Capacity       int   `json:"capacity"`
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, typ Type, config *Config) (*Pool, error) {
	if config == nil {
		config = BackgroundPoolConfig()
	}

	p := &Pool{
		name: name,
		typ:  typ,
	}

	pool, err := ants.NewPool(config.Capacity, buildAntsOptions(p, config)...)
	if err != nil {
		return nil, fmt.Errorf("创建 ants 池失败: %w", err)
	}
	p.pool = pool

	logger.Infow("Worker pool created",
		"name", name,
		"type", string(typ),
		"capacity", config.Capacity,
	)

	return p, nil
}

// buildAntsOptions 构建 ants 池选项
func buildAntsOptions(p *Pool, config *Config) []ants.Option {
	handler := config.PanicHandler
	if handler == nil {
		handler = func(v interface{}) {
			logger.Errorw("Worker panic recovered", "pool", p.name, "panic", v)
		}
	}

	return []ants.Option{
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithPreAlloc(config.PreAlloc),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithPanicHandler(func(v interface{}) {
			p.stats.PanicRecovered.Add(1)
			handler(v)
		}),
	}
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.name
}

// Type 返回池类型
func (p *Pool) Type() Type {
	return p.typ
}

// Cap 返回池容量
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Running 返回正在运行的 goroutine 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				// 交给 ants 的 PanicHandler 统一处理
				panic(r)
			}
			p.stats.CompletedTasks.Add(1)
		}()
		task()
	})
	if err != nil {
		switch {
		case errors.Is(err, ants.ErrPoolOverload):
			p.stats.RejectedTasks.Add(1)
			return ErrPoolOverload
		case errors.Is(err, ants.ErrPoolClosed):
			return ErrPoolClosed
		}
		return err
	}

	p.stats.SubmittedTasks.Add(1)
	return nil
}

// SubmitWithContext 提交带上下文的任务
// 如果任务开始前上下文已取消，任务不会执行
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		task()
	})
}

// Release 关闭池并释放资源
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Load() {
		return
	}

	p.closed.Store(true)
	p.pool.Release()
	logger.Infow("Worker pool released", "name", p.name)
}

// ReleaseTimeout 带超时关闭池，等待任务完成直到超时
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Load() {
		return nil
	}

	p.closed.Store(true)
	return p.pool.ReleaseTimeout(timeout)
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		SubmittedTasks: p.stats.SubmittedTasks.Load(),
		CompletedTasks: p.stats.CompletedTasks.Load(),
		RejectedTasks:  p.stats.RejectedTasks.Load(),
		PanicRecovered: p.stats.PanicRecovered.Load(),
		Running:        p.pool.Running(),
		Capacity:       p.pool.Cap(),
	}
}
