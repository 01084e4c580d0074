package msgworker

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	coreconfig "github.com/uzzaidev/ChatBot-Oficial-sub002/core/config"
)

var (
	globalPool     *MessageWorkerPool
	globalPoolOnce sync.Once
	globalCancel   context.CancelFunc
)

// GetGlobalPool returns the process wide pool sized from core/config.
func GetGlobalPool() *MessageWorkerPool {
	globalPoolOnce.Do(func() {
		var ctx context.Context
		ctx, globalCancel = context.WithCancel(context.Background())

		var size, queue int
		if coreconfig.Global != nil {
			size = coreconfig.Global.WorkerPool.Size
			queue = coreconfig.Global.WorkerPool.QueueSize
		}
		if size <= 0 {
			size = 20
		}
		if queue <= 0 {
			queue = 1000
		}

		globalPool = NewMessageWorkerPool(size, queue)
		globalPool.Start(ctx)
		logrus.Infof("[WORKER_POOL] Global instance started with %d workers and queue size %d", size, queue)
	})
	return globalPool
}

// StopGlobalPool drains the queued jobs and then cancels the running ones.
func StopGlobalPool() {
	if globalPool != nil {
		globalPool.Stop()
	}
	if globalCancel != nil {
		globalCancel()
	}
}
