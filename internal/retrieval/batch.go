package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BatchProcessor routes many independent questions concurrently.
type BatchProcessor struct {
	router     *Router
	maxWorkers int
	timeout    time.Duration
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(router *Router, maxWorkers int, timeout time.Duration) *BatchProcessor {
	if maxWorkers <= 0 {
		maxWorkers = 5 // Default: 5 concurrent workers
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &BatchProcessor{
		router:     router,
		maxWorkers: maxWorkers,
		timeout:    timeout,
	}
}

// ProcessQueries answers each query in its own conversation, named
// "<prefix>-<index>", and returns results in input order. Queries still
// running when the timeout expires are reported with an apology.
func (bp *BatchProcessor) ProcessQueries(ctx context.Context, prefix string, queries []string) ([]Result, error) {
	if len(queries) == 0 {
		return []Result{}, nil
	}

	processCtx, cancel := context.WithTimeout(ctx, bp.timeout)
	defer cancel()

	// Worker pool pattern
	type workItem struct {
		index int
		query string
	}

	workChan := make(chan workItem, len(queries))
	results := make([]Result, len(queries))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, q := range queries {
		workChan <- workItem{index: i, query: q}
	}
	close(workChan)

	for i := 0; i < bp.maxWorkers && i < len(queries); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workChan {
				if processCtx.Err() != nil {
					return
				}
				res := bp.router.Handle(processCtx, fmt.Sprintf("%s-%d", prefix, item.index), item.query)

				mu.Lock()
				results[item.index] = res
				mu.Unlock()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-processCtx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]Result, len(results))
	for i, r := range results {
		if r.ConversationID == "" {
			r = Result{Answer: exhausted(), ConversationID: fmt.Sprintf("%s-%d", prefix, i)}
		}
		out[i] = r
	}
	if err := processCtx.Err(); err != nil {
		return out, fmt.Errorf("batch processing stopped after %v: %w", bp.timeout, err)
	}
	return out, nil
}
