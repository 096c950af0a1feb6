package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/tower-qa/tower-qa/internal/models"
)

type Result[T any] = models.Result[T]

type job struct {
	ctx  context.Context
	work models.Work[any]
	out  chan models.Result[any]
}

// Scheduler runs work with at most a fixed number of slots busy. Work
// submitted while every slot is taken waits its turn, first in first out.
type Scheduler struct {
	submit   chan job
	finished chan struct{}
	stop     chan struct{}
	stopped  chan struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
	once    sync.Once
}

func NewScheduler(slots int) *Scheduler {
	slots = max(slots, 1)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		submit: make(chan job),
		// one per slot, so work ending after Close never blocks
		finished: make(chan struct{}, slots),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	go s.loop(slots)
	return s
}

// AddWork queues w and returns a future for its result. Once the scheduler
// is closed the future resolves with context.Canceled.
func (s *Scheduler) AddWork(w models.Work[any]) *models.Future[models.Result[any]] {
	out := make(chan models.Result[any], 1)
	ctx, cancel := context.WithCancel(s.ctx)
	f := models.NewFuture(out, cancel)

	select {
	case s.submit <- job{ctx: ctx, work: w, out: out}:
	case <-s.ctx.Done():
		out <- models.Result[any]{Err: context.Canceled}
	}
	return f
}

// Close cancels running work, fails queued work and waits for every
// running call to return.
func (s *Scheduler) Close() {
	s.once.Do(func() {
		s.cancel()
		close(s.stop)
		<-s.stopped
		s.running.Wait()
	})
}

func (s *Scheduler) loop(free int) {
	defer close(s.stopped)

	var pending models.Queue[job]
	for {
		select {
		case j := <-s.submit:
			pending.Push(j)
		case <-s.finished:
			free++
		case <-s.stop:
			for pending.Len() > 0 {
				pending.Pop().out <- models.Result[any]{Err: context.Canceled}
			}
			return
		}

		for free > 0 && pending.Len() > 0 {
			free--
			s.start(pending.Pop())
		}
	}
}

func (s *Scheduler) start(j job) {
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer func() { s.finished <- struct{}{} }()
		j.out <- execute(j)
	}()
}

func execute(j job) (r models.Result[any]) {
	defer func() {
		if p := recover(); p != nil {
			r = models.Result[any]{Err: fmt.Errorf("worker panicked: %v", p)}
		}
	}()
	v, err := j.work(j.ctx)
	return models.Result[any]{Data: v, Err: err}
}
