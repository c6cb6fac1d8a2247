package main

import (
	"context"
	"sync"
)

type task struct {
	ctx   context.Context
	jobID string
}

// pool fans dequeued job ids out to a fixed set of worker goroutines
// over a bounded channel.
type pool struct {
	tasks chan task
	done  chan struct{}
	wg    sync.WaitGroup
}

func newPool(n int, process func(context.Context, string)) *pool {
	p := &pool{
		tasks: make(chan task, n*2),
		done:  make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case t, ok := <-p.tasks:
					if !ok {
						return
					}
					process(t.ctx, t.jobID)
				case <-p.done:
					return
				}
			}
		}()
	}
	return p
}

// submit blocks until a worker frees up, providing backpressure to the
// queue subscription. An abandoned pool releases blocked submitters
// instead of leaving them stuck on a channel nobody reads.
func (p *pool) submit(ctx context.Context, jobID string) {
	select {
	case p.tasks <- task{ctx: ctx, jobID: jobID}:
	case <-p.done:
	}
}

// drainAndWait closes the task channel and waits for the workers to
// finish the backlog. Only safe once no submit can still be in flight.
func (p *pool) drainAndWait() {
	close(p.tasks)
	p.wg.Wait()
}

// abandon stops the workers without touching the task channel, for the
// shutdown path where the queue may not have finished delivering and a
// submit could still be blocked mid-send.
func (p *pool) abandon() {
	close(p.done)
	p.wg.Wait()
}
