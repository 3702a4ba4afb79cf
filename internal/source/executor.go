// Copyright (c) 2025-present deep.rent GmbH (https://www.deep.rent)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package source

import (
	"context"
	"sync"
)

// backgroundExecutor runs submitted tasks on a single worker goroutine, in
// submission order. RefreshAheadSource uses it so that a lazily-triggered
// refresh and a scheduler-triggered refresh never run concurrently: both
// funnel through the same queue.
type backgroundExecutor struct {
	tasks chan func(ctx context.Context)

	ctx    context.Context
	cancel context.CancelFunc

	wg     sync.WaitGroup
	closed chan struct{}
}

// newBackgroundExecutor starts the worker goroutine. queueLen bounds how
// many submitted-but-not-yet-run tasks may queue before submit blocks.
func newBackgroundExecutor(queueLen int) *backgroundExecutor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &backgroundExecutor{
		tasks:  make(chan func(ctx context.Context), queueLen),
		ctx:    ctx,
		cancel: cancel,
		closed: make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *backgroundExecutor) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case task := <-e.tasks:
			task(e.ctx)
		}
	}
}

// submit enqueues task to run on the worker goroutine. It is a no-op once
// the executor has been closed.
func (e *backgroundExecutor) submit(task func(ctx context.Context)) {
	select {
	case <-e.closed:
		return
	default:
	}
	select {
	case e.tasks <- task:
	case <-e.ctx.Done():
	}
}

// close stops accepting new tasks, cancels the context passed to any task
// still running, and waits for the worker to exit.
func (e *backgroundExecutor) close() {
	select {
	case <-e.closed:
		return
	default:
		close(e.closed)
	}
	e.cancel()
	e.wg.Wait()
}
