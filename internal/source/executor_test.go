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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackgroundExecutor_RunsInSubmissionOrder(t *testing.T) {
	e := newBackgroundExecutor(4)
	defer e.close()

	var order atomic.Int32
	results := make(chan int32, 3)
	for i := 0; i < 3; i++ {
		e.submit(func(ctx context.Context) {
			results <- order.Add(1)
		})
	}

	for i := 1; i <= 3; i++ {
		select {
		case v := <-results:
			assert.EqualValues(t, i, v)
		case <-time.After(time.Second):
			t.Fatal("task did not run")
		}
	}
}

func TestBackgroundExecutor_CloseWaitsForRunningTask(t *testing.T) {
	e := newBackgroundExecutor(1)

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	e.submit(func(ctx context.Context) {
		close(started)
		<-release
		finished.Store(true)
	})

	<-started
	close(release)
	e.close()

	assert.True(t, finished.Load(), "close must wait for the in-flight task to finish")
}

func TestBackgroundExecutor_SubmitAfterCloseIsNoOp(t *testing.T) {
	e := newBackgroundExecutor(1)
	e.close()

	ran := make(chan struct{})
	e.submit(func(ctx context.Context) { close(ran) })

	select {
	case <-ran:
		t.Fatal("a task submitted after close must not run")
	case <-time.After(20 * time.Millisecond):
	}
}
