package temporal

import (
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// TransferWorkflowName is the registered name of TransferWorkflow.
const TransferWorkflowName = "TransferWorkflow"

// TransferWorkflow submits a single transfer on behalf of an async request.
//
// The activity is attempted exactly once. A transfer that reached the node
// may already be on-chain even when the activity reports an error, so a
// retry could pay twice.
func TransferWorkflow(ctx workflow.Context, input TransferInput) (*TransferOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("TransferWorkflow started", "kind", input.Kind, "to", input.To)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var out *TransferOutput
	if err := workflow.ExecuteActivity(ctx, a.ExecuteTransfer, input).Get(ctx, &out); err != nil {
		logger.Error("TransferWorkflow failed", "error", err)
		return nil, err
	}

	logger.Info("TransferWorkflow completed", "txid", out.TxID)
	return out, nil
}
