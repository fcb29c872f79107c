package lens

import (
	"fmt"
	"strings"

	"github.com/sells-group/lens-cli/internal/model"
)

// MatchParticipant finds the interview participant a free-text name refers
// to. It tries an exact match, then containment either way, then a first
// name prefix of at least three letters. Returns nil when nothing matches.
func MatchParticipant(name string, participants []model.Participant) *model.Participant {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" || len(participants) == 0 {
		return nil
	}

	names := make([]string, len(participants))
	for i, p := range participants {
		names[i] = strings.ToLower(strings.TrimSpace(p.DisplayName))
	}

	for i, n := range names {
		if n != "" && n == needle {
			return &participants[i]
		}
	}
	for i, n := range names {
		if n != "" && (strings.Contains(n, needle) || strings.Contains(needle, n)) {
			return &participants[i]
		}
	}
	if first := strings.Fields(needle)[0]; len(first) > 2 {
		for i, n := range names {
			if strings.HasPrefix(n, first) {
				return &participants[i]
			}
		}
	}
	return nil
}

// EnrichEntities stamps every entity with a stable key and, when its name
// matches a participant, the participant's person id. Unmatched entities keep
// their name as candidate_name. Nothing changes when there are no participants.
func EnrichEntities(data *model.AnalysisData, participants []model.Participant) int {
	if len(participants) == 0 {
		return 0
	}
	matched := 0
	for entityType, items := range data.Entities {
		for i := range items {
			e := &items[i]
			e.EntityKey = fmt.Sprintf("%s-%d", entityType, i)
			e.PersonID = ""
			e.CandidateName = ""
			if p := MatchParticipant(e.Name, participants); p != nil {
				e.PersonID = p.PersonID
				matched++
			} else {
				e.CandidateName = e.Name
			}
		}
	}
	return matched
}
