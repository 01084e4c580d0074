package application

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/msgworker"
)

// Dispatcher runs the part of a webhook that happens after the ack decision.
// Park is for jobs that mostly wait; they must not hold a worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, job msgworker.MessageJob) bool
	Park(ctx context.Context, job msgworker.MessageJob) bool
}

// InlineDispatcher runs the job on the caller's goroutine.
type InlineDispatcher struct{}

func (InlineDispatcher) Dispatch(ctx context.Context, job msgworker.MessageJob) bool {
	if err := job.Handler(ctx); err != nil {
		logrus.WithError(err).WithField("job", job.Key()).Debug("[DISPATCH] inline job failed")
	}
	return true
}

func (d InlineDispatcher) Park(ctx context.Context, job msgworker.MessageJob) bool {
	return d.Dispatch(ctx, job)
}

// PoolDispatcher queues the job on the worker pool; the request context is
// not propagated because the job outlives the request.
type PoolDispatcher struct {
	Pool *msgworker.MessageWorkerPool
}

func (d PoolDispatcher) Dispatch(_ context.Context, job msgworker.MessageJob) bool {
	return d.Pool.TryDispatch(job)
}

func (d PoolDispatcher) Park(_ context.Context, job msgworker.MessageJob) bool {
	return d.Pool.Park(job)
}
