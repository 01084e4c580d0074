package msgworker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// MessageJob es el procesamiento en segundo plano de un webhook ya autenticado.
type MessageJob struct {
	TenantID  string
	MessageID string
	Handler   func(ctx context.Context) error
}

// Key identifica el job dentro del pool.
func (j MessageJob) Key() string {
	return j.TenantID + "|" + j.MessageID
}

// PoolStats contiene métricas en tiempo real del worker pool
type PoolStats struct {
	NumWorkers      int            `json:"num_workers"`
	QueueSize       int            `json:"queue_size"`
	ActiveWorkers   int            `json:"active_workers"`
	TotalDispatched int64          `json:"total_dispatched"`
	TotalProcessed  int64          `json:"total_processed"`
	TotalDropped    int64          `json:"total_dropped"`
	TotalErrors     int64          `json:"total_errors"`
	ParkedJobs      int64          `json:"parked_jobs"`
	UptimeSeconds   int64          `json:"uptime_seconds"`
	WorkerStats     []WorkerStats  `json:"worker_stats"`
	ActiveJobs      map[string]int `json:"active_jobs"` // tenantID|messageID -> worker_id
}

type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

// MessageWorkerPool reparte los jobs entre workers con cola propia. Los
// workers son serie por shard, así que nada que sólo espera (la ventana del
// batch) debe correr en ellos: para eso está Park.
type MessageWorkerPool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	parked     sync.WaitGroup
	stopOnce   sync.Once
	stopped    int32
	startTime  time.Time
	ctx        context.Context
	cancel     context.CancelFunc

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64
	parkedJobs      int64

	activeMu   sync.Mutex
	activeJobs map[string]int

	// Hooks para monitoreo externo
	OnJobStart func(workerID int, key string)
	OnJobEnd   func(workerID int, key string, err error)
}

type worker struct {
	id            int
	jobQueue      chan MessageJob
	ctx           context.Context
	cancel        context.CancelFunc
	isProcessing  int32 // atomic
	jobsProcessed int64 // atomic
	pool          *MessageWorkerPool
}

func NewMessageWorkerPool(numWorkers, queueSize int) *MessageWorkerPool {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &MessageWorkerPool{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
		activeJobs: make(map[string]int),
		startTime:  time.Now(),
		ctx:        context.Background(),
		cancel:     func() {},
	}
}

// Start lanza los workers. Los handlers reciben un contexto derivado de ctx.
func (p *MessageWorkerPool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.numWorkers; i++ {
		workerCtx, cancel := context.WithCancel(p.ctx)
		w := &worker{
			id:       i,
			jobQueue: make(chan MessageJob, p.queueSize),
			ctx:      workerCtx,
			cancel:   cancel,
			pool:     p,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(&p.wg)
	}

	logrus.Infof("[WORKER_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

// TryDispatch encola el job sin bloquear y retorna si pudo hacerlo.
func (p *MessageWorkerPool) TryDispatch(job MessageJob) bool {
	if atomic.LoadInt32(&p.stopped) == 1 {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}

	key := job.Key()
	shard := p.shardFor(key)
	atomic.AddInt64(&p.totalDispatched, 1)

	sent := func() (ok bool) {
		// la cola puede cerrarse entre el chequeo de stopped y el envío
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].jobQueue <- job:
			return true
		default:
			return false
		}
	}()
	if sent {
		return true
	}

	atomic.AddInt64(&p.totalDropped, 1)
	logrus.Warnf("[WORKER_POOL] Worker %d queue full (or stopped), dropping job %s", shard, key)
	return false
}

// Park corre el job en su propia goroutine, fuera de los workers. Es para
// jobs que pasan casi todo el tiempo esperando; el trabajo pesado que
// venga después debe volver al pool con TryDispatch.
func (p *MessageWorkerPool) Park(job MessageJob) bool {
	if atomic.LoadInt32(&p.stopped) == 1 {
		atomic.AddInt64(&p.totalDropped, 1)
		logrus.Warnf("[WORKER_POOL] Pool stopped, dropping parked job %s", job.Key())
		return false
	}

	key := job.Key()
	atomic.AddInt64(&p.parkedJobs, 1)
	p.parked.Add(1)
	go func() {
		defer p.parked.Done()
		defer atomic.AddInt64(&p.parkedJobs, -1)
		defer func() {
			if r := recover(); r != nil {
				atomic.AddInt64(&p.totalErrors, 1)
				logrus.Errorf("[WORKER_POOL] Parked job %s panic: %v", key, r)
			}
		}()
		if err := job.Handler(p.ctx); err != nil {
			atomic.AddInt64(&p.totalErrors, 1)
			logrus.WithError(err).Errorf("[WORKER_POOL] Parked job %s failed", key)
		}
	}()
	return true
}

// Stop detiene el pool de forma graceful: los jobs ya encolados se procesan.
func (p *MessageWorkerPool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		logrus.Info("[WORKER_POOL] Stopping workers...")

		for _, w := range p.workers {
			if w == nil {
				continue
			}
			close(w.jobQueue)
		}
		p.wg.Wait()
		for _, w := range p.workers {
			if w != nil {
				w.cancel()
			}
		}
		// los jobs estacionados ya no pueden volver al pool
		p.cancel()
		p.parked.Wait()

		logrus.Info("[WORKER_POOL] All workers stopped")
	})
}

// shardFor usa hash consistente sobre la clave del job
func (p *MessageWorkerPool) shardFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *MessageWorkerPool) GetStats() PoolStats {
	workerStats := make([]WorkerStats, 0, len(p.workers))
	activeWorkers := 0

	for _, w := range p.workers {
		if w == nil {
			continue
		}
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}
		workerStats = append(workerStats, WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		})
	}

	p.activeMu.Lock()
	active := make(map[string]int, len(p.activeJobs))
	for k, v := range p.activeJobs {
		active[k] = v
	}
	p.activeMu.Unlock()

	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   activeWorkers,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		ParkedJobs:      atomic.LoadInt64(&p.parkedJobs),
		UptimeSeconds:   int64(time.Since(p.startTime).Seconds()),
		WorkerStats:     workerStats,
		ActiveJobs:      active,
	}
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	logrus.Debugf("[WORKER_POOL] Worker %d started", w.id)

	for job := range w.jobQueue {
		w.process(job)
	}
	logrus.Debugf("[WORKER_POOL] Worker %d shutting down", w.id)
}

// process ejecuta un job; un panic se cuenta como error y no mata al worker
func (w *worker) process(job MessageJob) {
	p := w.pool
	key := job.Key()

	p.activeMu.Lock()
	p.activeJobs[key] = w.id
	p.activeMu.Unlock()
	if p.OnJobStart != nil {
		p.OnJobStart(w.id, key)
	}
	atomic.StoreInt32(&w.isProcessing, 1)

	var err error
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.totalErrors, 1)
			logrus.Errorf("[WORKER_POOL] Worker %d panic for %s: %v", w.id, key, r)
		}
		p.activeMu.Lock()
		delete(p.activeJobs, key)
		p.activeMu.Unlock()
		if p.OnJobEnd != nil {
			p.OnJobEnd(w.id, key, err)
		}
		atomic.StoreInt32(&w.isProcessing, 0)
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&p.totalProcessed, 1)
	}()

	err = job.Handler(w.ctx)
	if err != nil {
		atomic.AddInt64(&p.totalErrors, 1)
		logrus.WithError(err).Errorf("[WORKER_POOL] Worker %d job %s failed", w.id, key)
	}
}
