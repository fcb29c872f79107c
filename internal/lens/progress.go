package lens

// Stage is one step of a single lens application.
type Stage string

const (
	StageLoading    Stage = "loading"
	StageExtracting Stage = "extracting"
	StageEnriching  Stage = "enriching"
	StageSaving     Stage = "saving"
	StageComplete   Stage = "complete"
)

var stageInfo = map[Stage]struct {
	percent int
	label   string
}{
	StageLoading:    {10, "Loading interview data..."},
	StageExtracting: {40, "Extracting insights with AI..."},
	StageEnriching:  {70, "Enriching entities..."},
	StageSaving:     {95, "Saving results..."},
	StageComplete:   {100, "Analysis complete!"},
}

// Progress is a snapshot of a running lens operation.
type Progress struct {
	Stage      Stage  `json:"stage"`
	Percent    int    `json:"progress_percent"`
	StageLabel string `json:"stage_label"`
	// Completed and Total are set by the apply-all orchestrator.
	Completed   int    `json:"completed,omitempty"`
	Total       int    `json:"total,omitempty"`
	CurrentLens string `json:"current_lens,omitempty"`
}

// ProgressFunc receives progress updates. It must not block.
type ProgressFunc func(Progress)

// NewProgress builds the snapshot for stage, prefixing the label with the
// template name when one is given.
func NewProgress(stage Stage, templateName string) Progress {
	info := stageInfo[stage]
	label := info.label
	if templateName != "" {
		label = templateName + ": " + label
	}
	return Progress{Stage: stage, Percent: info.percent, StageLabel: label}
}

func (f ProgressFunc) report(stage Stage, templateName string) {
	if f != nil {
		f(NewProgress(stage, templateName))
	}
}
