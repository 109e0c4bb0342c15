package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solgate/service/metrics"
	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
)

// ErrTransferNotFound is returned when no transfer workflow has the given id.
var ErrTransferNotFound = errors.New("transfer not found")

// Transfer states reported by TransferStatus.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TransferIDPrefix prefixes every transfer workflow id.
const TransferIDPrefix = "transfer-"

// TransferStarter starts async transfers and reports on them.
type TransferStarter interface {
	StartTransfer(ctx context.Context, input TransferInput) (string, error)
	TransferStatus(ctx context.Context, id string) (*TransferStatus, error)
}

// TransferStatus is the externally visible state of an async transfer.
type TransferStatus struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
	TxID       string `json:"txid,omitempty"`
	CreateTxID string `json:"create_txid,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TransferSummary is one row of ListTransfers.
type TransferSummary struct {
	TransferID string    `json:"transfer_id"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
}

// Client is a production implementation of TransferStarter that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return NewClientFromSDK(c, taskQueue, m, logger), nil
}

// NewClientFromSDK wraps an existing SDK client.
func NewClientFromSDK(c client.Client, taskQueue string, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:    c,
		taskQueue: taskQueue,
		metrics:   m,
		logger:    logger,
	}
}

// StartTransfer validates input and starts a TransferWorkflow for it. The
// returned id is the workflow id.
func (c *Client) StartTransfer(ctx context.Context, input TransferInput) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}

	id := TransferIDPrefix + uuid.NewString()
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
	}, TransferWorkflow, input)
	if err != nil {
		c.recordStart(input.Kind, "error")
		c.logger.ErrorContext(ctx, "failed to start transfer workflow",
			"transfer_id", id,
			"kind", input.Kind,
			"error", err,
		)
		return "", fmt.Errorf("failed to start transfer workflow: %w", err)
	}

	c.recordStart(input.Kind, "started")
	c.logger.InfoContext(ctx, "started transfer workflow",
		"transfer_id", id,
		"run_id", run.GetRunID(),
		"kind", input.Kind,
	)
	return id, nil
}

// TransferStatus describes the transfer workflow with the given id.
func (c *Client) TransferStatus(ctx context.Context, id string) (*TransferStatus, error) {
	desc, err := c.client.DescribeWorkflowExecution(ctx, id, "")
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to describe transfer %q: %w", id, err)
	}

	status := &TransferStatus{TransferID: id}
	switch desc.GetWorkflowExecutionInfo().GetStatus() {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		status.Status = StatusRunning
		return status, nil
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		var out TransferOutput
		if err := c.client.GetWorkflow(ctx, id, "").Get(ctx, &out); err != nil {
			return nil, fmt.Errorf("failed to read result of transfer %q: %w", id, err)
		}
		status.Status = StatusCompleted
		status.TxID = out.TxID
		status.CreateTxID = out.CreateTxID
		return status, nil
	default:
		status.Status = StatusFailed
		err := c.client.GetWorkflow(ctx, id, "").Get(ctx, nil)
		status.Error, status.CreateTxID = failureDetails(err)
		if status.Error == "" {
			status.Error = "transfer " + statusName(desc.GetWorkflowExecutionInfo().GetStatus())
		}
		return status, nil
	}
}

// ListTransfers returns the most recent transfer workflows.
func (c *Client) ListTransfers(ctx context.Context, limit int) ([]TransferSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	resp, err := c.client.ListWorkflow(ctx, &workflowservice.ListWorkflowExecutionsRequest{
		PageSize: int32(limit),
		Query:    fmt.Sprintf("WorkflowType = '%s'", TransferWorkflowName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}

	out := make([]TransferSummary, 0, len(resp.GetExecutions()))
	for _, exec := range resp.GetExecutions() {
		s := TransferSummary{
			TransferID: exec.GetExecution().GetWorkflowId(),
			Status:     statusName(exec.GetStatus()),
		}
		if ts := exec.GetStartTime(); ts != nil {
			s.StartedAt = ts.AsTime()
		}
		out = append(out, s)
	}
	return out, nil
}

// SDKClient returns the underlying Temporal SDK client.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the task queue transfers are started on.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.client.Close()
}

func (c *Client) recordStart(kind, status string) {
	if c.metrics != nil {
		c.metrics.RecordWorkflowStarted(kind, status)
	}
}

// failureDetails extracts the activity's message and any recorded
// create transaction id from a failed workflow's error.
func failureDetails(err error) (msg, createTxID string) {
	if err == nil {
		return "", ""
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		if appErr.HasDetails() {
			_ = appErr.Details(&createTxID)
		}
		return appErr.Error(), createTxID
	}
	return err.Error(), ""
}

func statusName(s enumspb.WorkflowExecutionStatus) string {
	switch s {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return StatusRunning
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return StatusCompleted
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED:
		return StatusFailed
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return "canceled"
	case enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return "terminated"
	case enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return "timed out"
	default:
		return "unknown"
	}
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
