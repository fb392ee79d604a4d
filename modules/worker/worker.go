// Copyright 2025 Nguyen Nhat Nguyen
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

// Package worker runs jobs on a bounded set of goroutines.
package worker

import (
	"context"
	"log/slog"
	"sync"
)

type Worker[Job any] func(context.Context, Job)

// BlockingPool feeds jobs to size workers and returns once jobs is closed and
// drained, or ctx is done. A panicking job is logged and its worker keeps
// going.
func BlockingPool[Job any](ctx context.Context, size int, jobs <-chan Job, worker Worker[Job]) {
	if size <= 0 {
		size = 1
	}
	wg := sync.WaitGroup{}
	for range size {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-jobs:
					if !ok {
						return
					}
					run(ctx, worker, job)
				}
			}
		})
	}

	wg.Wait()
}

// Each runs fn for every item on at most size goroutines and waits for all
// of them.
func Each[T any](ctx context.Context, size int, items []T, fn Worker[T]) {
	jobs := make(chan T, len(items))
	for _, it := range items {
		jobs <- it
	}
	close(jobs)
	BlockingPool(ctx, size, jobs, fn)
}

// wg.Go requires that the func does not panic
func run[Job any](ctx context.Context, worker Worker[Job], job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(ctx, "worker panic", slog.Any("error", rec))
		}
	}()
	worker(ctx, job)
}
