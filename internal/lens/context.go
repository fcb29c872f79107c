package lens

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/lens-cli/internal/llm"
	"github.com/sells-group/lens-cli/internal/model"
)

const noContext = "No context available"

// InterviewContext renders the interview metadata block sent with every
// extraction.
func InterviewContext(iv model.Interview) string {
	var parts []string
	if iv.Title != "" {
		parts = append(parts, "Title: "+iv.Title)
	}
	if iv.InterviewDate != nil {
		parts = append(parts, "Date: "+iv.InterviewDate.Format("2006-01-02"))
	}
	if iv.DurationSec > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %d minutes", int(math.Round(float64(iv.DurationSec)/60))))
	}
	if len(parts) == 0 {
		return noContext
	}
	return strings.Join(parts, "\n")
}

// lensEvidence converts evidence rows to the extraction payload, keeping
// their order.
func lensEvidence(evidence []model.Evidence) []llm.LensEvidence {
	out := make([]llm.LensEvidence, 0, len(evidence))
	for _, e := range evidence {
		out = append(out, llm.LensEvidence{
			ID:       e.ID,
			Gist:     e.Gist,
			Verbatim: e.Verbatim,
			Support:  string(e.Support),
		})
	}
	return out
}
