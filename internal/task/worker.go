package task

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// Registry is the subset of worker.Worker (and the test environment) that
// workflows and activities are registered on.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register binds every workflow and activity under its task name.
func Register(r Registry, w *Workflows, a *Activities) {
	r.RegisterWorkflowWithOptions(w.ApplyLens, workflow.RegisterOptions{Name: ApplyLens})
	r.RegisterWorkflowWithOptions(w.ApplyAllLenses, workflow.RegisterOptions{Name: ApplyAllLenses})
	r.RegisterWorkflowWithOptions(w.SynthesizeSummary, workflow.RegisterOptions{Name: SynthesizeSummary})
	r.RegisterWorkflowWithOptions(w.ApplyQALens, workflow.RegisterOptions{Name: ApplyQALens})
	r.RegisterWorkflowWithOptions(w.SynthesizeCrossLens, workflow.RegisterOptions{Name: SynthesizeCross})
	r.RegisterWorkflowWithOptions(w.EvidenceAnalysis, workflow.RegisterOptions{Name: EvidenceAnalysis})

	r.RegisterActivityWithOptions(a.ApplyLens, activity.RegisterOptions{Name: ApplyLens})
	r.RegisterActivityWithOptions(a.ApplyQALens, activity.RegisterOptions{Name: ApplyQALens})
	r.RegisterActivityWithOptions(a.SynthesizeSummary, activity.RegisterOptions{Name: SynthesizeSummary})
	r.RegisterActivityWithOptions(a.SynthesizeCrossLens, activity.RegisterOptions{Name: SynthesizeCross})
	r.RegisterActivityWithOptions(a.EvidenceAnalysis, activity.RegisterOptions{Name: EvidenceAnalysis})
	r.RegisterActivityWithOptions(a.ResolveLensSet, activity.RegisterOptions{Name: resolveLensSet})
}

// NewWorker creates a worker on taskQueue with every task registered.
// maxConcurrentActivities bounds activity executions on this worker.
func NewWorker(c client.Client, taskQueue string, maxConcurrentActivities int, w *Workflows, a *Activities) worker.Worker {
	wk := worker.New(c, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: maxConcurrentActivities,
	})
	Register(wk, w, a)
	return wk
}
