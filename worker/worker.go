package worker

import (
	"sync"
	"time"

	engine "github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/abstract"

	zlog "github.com/rs/zerolog/log"
)

type Operation string

const (
	Insert Operation = "insert"
	Read   Operation = "read"
	Update Operation = "update"
)

var Operations = []Operation{Insert, Read, Update}

// Worker times the operations of one engine and keeps their metrics.
type Worker struct {
	id              int
	engine          engine.Engine
	results         map[int]map[Operation]*Metric // record count -> operation -> Metric
	resultsLock     sync.Mutex
	operationsToLog chan *OperationLogEntry
	operationLogWg  *sync.WaitGroup
}

type OperationLogEntry struct {
	op          Operation
	recordCount int
	rt          float64
	rows        int
	err         error
	t           time.Time
}

type Metric struct {
	Rts           []float64 // response times (seconds) of the completed runs
	TotalRt       float64   // sum of the response times of the completed runs
	CompleteCount int       // number of completed runs
	AbortCount    int       // number of failed runs
	Rows          int       // rows written or read, summed over the completed runs
}

func NewWorker(id int, engine engine.Engine) *Worker {
	worker := new(Worker)
	worker.id = id
	worker.engine = engine
	worker.results = map[int]map[Operation]*Metric{}
	worker.operationLogWg = &sync.WaitGroup{}
	return worker
}

func (w *Worker) Engine() engine.Engine {
	return w.engine
}

func (w *Worker) log(msg string) {
	zlog.Info().Int("worker", w.id).Str("engine", w.engine.Name()).Msg(msg)
}

func (w *Worker) logOperationsWorker(operations <-chan *OperationLogEntry) {
	for operation := range operations {
		var msg string
		if operation.err == nil {
			msg = "completed"
		} else {
			msg = "aborted"
		}

		zlog.Debug().Int("worker", w.id).Str("engine", w.engine.Name()).Str("operation", string(operation.op)).
			Int("records", operation.recordCount).Int("rows", operation.rows).
			Float64("rt", operation.rt).Time("real_time", operation.t).Msg(msg)
	}

	w.operationLogWg.Done()
}

// Starts the operation logger
func (w *Worker) Start() {
	w.operationsToLog = make(chan *OperationLogEntry, 1024)
	w.operationLogWg.Add(1)
	go w.logOperationsWorker(w.operationsToLog)
	w.log("Started")
}

// Flushes the operation logger. Metrics are kept, and Start may be called again.
func (w *Worker) Stop() {
	if w.operationsToLog == nil {
		return
	}
	close(w.operationsToLog)
	w.operationLogWg.Wait()
	w.operationsToLog = nil
	w.log("Done")
}

// Runs fn, which returns the measured duration and the number of rows it produced, and records
// the outcome under recordCount and op. The error of fn is returned unchanged.
func (w *Worker) Do(op Operation, recordCount int, fn func() (time.Duration, int, error)) (time.Duration, error) {
	elapsed, rows, err := fn()
	if elapsed < 0 {
		elapsed = 0
	}
	rt := elapsed.Seconds()
	if w.operationsToLog != nil {
		w.operationsToLog <- &OperationLogEntry{op, recordCount, rt, rows, err, time.Now()}
	}

	w.resultsLock.Lock()
	defer w.resultsLock.Unlock()

	ops, ok := w.results[recordCount]
	if !ok {
		ops = map[Operation]*Metric{}
		w.results[recordCount] = ops
	}
	metric, ok := ops[op]
	if !ok {
		metric = &Metric{}
		ops[op] = metric
	}

	if err == nil {
		metric.CompleteCount++
		metric.Rts = append(metric.Rts, rt)
		metric.TotalRt += rt
		metric.Rows += rows
	} else {
		metric.AbortCount++
	}

	return elapsed, err
}

// Returns a copy of the collected metrics
func (w *Worker) Results() map[int]map[Operation]Metric {
	w.resultsLock.Lock()
	defer w.resultsLock.Unlock()

	results := map[int]map[Operation]Metric{}
	for count, ops := range w.results {
		results[count] = map[Operation]Metric{}
		for op, m := range ops {
			copied := *m
			copied.Rts = append([]float64(nil), m.Rts...)
			results[count][op] = copied
		}
	}
	return results
}

// Returns the engine-specific configurations
func (w *Worker) GetConfigs() map[string]string {
	return w.engine.GetConfigs()
}
