package temporal

import (
	"fmt"
	"log/slog"

	"github.com/brojonat/solgate/service/metrics"
	"go.temporal.io/sdk/worker"
)

// WorkerConfig contains configuration for the embedded Temporal worker.
type WorkerConfig struct {
	// Client supplies the connection and task queue. The worker does not
	// close it.
	Client *Client

	// Dependencies
	Wallet  WalletService
	Metrics *metrics.Metrics // Optional: if nil, no metrics will be recorded
	Logger  *slog.Logger
}

// Worker wraps a Temporal worker and provides lifecycle management.
type Worker struct {
	worker worker.Worker
	logger *slog.Logger
}

// NewWorker creates a worker that executes transfer workflows in-process,
// sharing the caller's wallet service.
func NewWorker(config WorkerConfig) (*Worker, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("temporal client is required")
	}
	if config.Wallet == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	logger := config.Logger.With("component", "temporal_worker")

	logger.Info("creating temporal worker", "task_queue", config.Client.TaskQueue())

	w := worker.New(config.Client.SDKClient(), config.Client.TaskQueue(), worker.Options{
		MaxConcurrentActivityExecutionSize:     10,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	w.RegisterWorkflow(TransferWorkflow)
	logger.Info("registered workflow", "name", TransferWorkflowName)

	activities := NewActivities(config.Wallet, config.Metrics, logger)
	w.RegisterActivity(activities.ExecuteTransfer)
	logger.Info("registered activities", "activities", []string{"ExecuteTransfer"})

	return &Worker{
		worker: w,
		logger: logger,
	}, nil
}

// Start begins polling the task queue. It does not block.
func (w *Worker) Start() error {
	w.logger.Info("starting temporal worker")
	if err := w.worker.Start(); err != nil {
		w.logger.Error("worker failed to start", "error", err)
		return fmt.Errorf("worker failed to start: %w", err)
	}
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.logger.Info("stopping temporal worker")
	w.worker.Stop()
	w.logger.Info("temporal worker stopped")
}
