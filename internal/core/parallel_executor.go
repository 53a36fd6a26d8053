package core

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/EmundoT/vendor-qc/internal/types"
)

// maxDefaultWorkers caps the NumCPU-derived worker count.
const maxDefaultWorkers = 8

// RowFunc evaluates every registered checkpoint for one row.
type RowFunc func(ctx context.Context, row types.DeliveryRow, today time.Time) types.RowRunResult

// ParallelExecutor evaluates delivery rows concurrently with a bounded worker pool.
type ParallelExecutor struct {
	maxWorkers int
}

// NewParallelExecutor creates a new parallel executor. workers <= 0 selects NumCPU,
// limited to 8.
func NewParallelExecutor(workers int) *ParallelExecutor {
	if workers <= 0 {
		workers = runtime.NumCPU()
		// Limit to a reasonable maximum to avoid overwhelming the filesystem
		if workers > maxDefaultWorkers {
			workers = maxDefaultWorkers
		}
	}
	return &ParallelExecutor{maxWorkers: workers}
}

// Workers returns the configured pool size.
func (p *ParallelExecutor) Workers() int {
	return p.maxWorkers
}

type rowJob struct {
	index int
	row   types.DeliveryRow
}

type rowResult struct {
	index  int
	result types.RowRunResult
}

// ExecuteRows runs fn for every row and returns the results in input order.
// Rows not yet started when ctx is cancelled get a cancelled result instead of
// being evaluated. onDone, when non-nil, is called once per finished row from
// the collecting goroutine.
func (p *ParallelExecutor) ExecuteRows(
	ctx context.Context,
	rows []types.DeliveryRow,
	today time.Time,
	fn RowFunc,
	onDone func(types.RowRunResult),
) []types.RowRunResult {
	if len(rows) == 0 {
		return []types.RowRunResult{}
	}

	workerCount := p.maxWorkers
	if workerCount > len(rows) {
		workerCount = len(rows)
	}

	jobs := make(chan rowJob, len(rows))
	results := make(chan rowResult, len(rows))

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go p.rowWorker(ctx, &wg, jobs, results, today, fn)
	}

	for i, row := range rows {
		jobs <- rowJob{index: i, row: row}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]types.RowRunResult, len(rows))
	for r := range results {
		ordered[r.index] = r.result
		if onDone != nil {
			onDone(r.result)
		}
	}
	return ordered
}

// rowWorker processes rows from the jobs channel.
// ctx is checked before each row.
func (p *ParallelExecutor) rowWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan rowJob,
	results chan<- rowResult,
	today time.Time,
	fn RowFunc,
) {
	defer wg.Done()

	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- rowResult{index: job.index, result: cancelledRow(job.row, today, err)}
			continue
		}
		results <- rowResult{index: job.index, result: fn(ctx, job.row, today)}
	}
}

// cancelledRow reports a row that was never evaluated.
func cancelledRow(row types.DeliveryRow, today time.Time, err error) types.RowRunResult {
	failure := types.NewFailureRecord(row, CheckpointCancelled, "Evaluation cancelled: "+err.Error())
	return types.RowRunResult{
		Row:  row,
		AsOf: today,
		Checkpoints: []types.CheckpointRunResult{{
			Checkpoint: CheckpointCancelled,
			ToolNumber: row.ToolNumber,
			Failures:   []types.FailureRecord{failure},
		}},
		TotalFailureCount: 1,
	}
}
