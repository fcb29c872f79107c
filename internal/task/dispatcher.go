package task

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"

	"github.com/sells-group/lens-cli/internal/lens"
	"github.com/sells-group/lens-cli/internal/model"
	"github.com/sells-group/lens-cli/internal/research"
)

// Run identifies a started workflow.
type Run struct {
	Task       string `json:"task"`
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// Dispatcher starts tasks and reads their progress and results.
type Dispatcher struct {
	client    client.Client
	taskQueue string
}

// NewDispatcher creates a Dispatcher for taskQueue.
func NewDispatcher(c client.Client, taskQueue string) *Dispatcher {
	return &Dispatcher{client: c, taskQueue: taskQueue}
}

// DecodeInput parses a JSON payload into the input type of task name and
// checks its required fields.
func DecodeInput(name string, payload []byte) (any, error) {
	var (
		in       any
		required [][2]string
	)
	switch name {
	case ApplyLens, ApplyQALens:
		var r lens.ApplyRequest
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, model.NewInputError("payload", "%v", err)
		}
		required = [][2]string{{"interview_id", r.InterviewID}}
		if name == ApplyLens {
			required = append(required, [2]string{"template_key", r.TemplateKey})
		}
		in = r
	case ApplyAllLenses:
		var r lens.ApplyAllRequest
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, model.NewInputError("payload", "%v", err)
		}
		required = [][2]string{{"interview_id", r.InterviewID}, {"account_id", r.AccountID}}
		in = r
	case SynthesizeSummary, SynthesizeCross:
		var r lens.SynthesizeRequest
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, model.NewInputError("payload", "%v", err)
		}
		required = [][2]string{{"project_id", r.ProjectID}}
		if name == SynthesizeSummary {
			required = append(required, [2]string{"template_key", r.TemplateKey})
		}
		in = r
	case EvidenceAnalysis:
		var r research.Request
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, model.NewInputError("payload", "%v", err)
		}
		required = [][2]string{{"project_id", r.ProjectID}}
		in = r
	default:
		return nil, model.NewInputError("task", "unknown task %q", name)
	}
	for _, f := range required {
		if err := model.Required(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// Start triggers task name with input.
func (d *Dispatcher) Start(ctx context.Context, name string, input any) (*Run, error) {
	if !Known(name) {
		return nil, model.NewInputError("task", "unknown task %q", name)
	}
	wr, err := d.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        name + "-" + uuid.NewString(),
		TaskQueue: d.taskQueue,
	}, name, input)
	if err != nil {
		return nil, eris.Wrapf(err, "task: start %s", name)
	}
	return &Run{Task: name, WorkflowID: wr.GetID(), RunID: wr.GetRunID()}, nil
}

// Progress queries the current progress of a running workflow.
func (d *Dispatcher) Progress(ctx context.Context, workflowID string) (*lens.Progress, error) {
	v, err := d.client.QueryWorkflow(ctx, workflowID, "", QueryProgress)
	if err != nil {
		return nil, eris.Wrapf(err, "task: query progress %s", workflowID)
	}
	var p lens.Progress
	if err := v.Get(&p); err != nil {
		return nil, eris.Wrap(err, "task: decode progress")
	}
	return &p, nil
}

// Result waits for the workflow to finish and decodes its result into out.
func (d *Dispatcher) Result(ctx context.Context, workflowID string, out any) error {
	return eris.Wrapf(d.client.GetWorkflow(ctx, workflowID, "").Get(ctx, out), "task: result %s", workflowID)
}
