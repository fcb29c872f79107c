package research

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lens-cli/internal/model"
)

var respondentRoles = map[string]bool{
	"respondent":  true,
	"interviewee": true,
	"participant": true,
}

// ResolveRespondent picks the person an interview-level answer is attributed
// to: the lowest person id among respondent-like roles, else the lowest
// person id overall. Returns "" when there are no participants.
func ResolveRespondent(participants []model.Participant) string {
	if len(participants) == 0 {
		return ""
	}
	ps := make([]model.Participant, len(participants))
	copy(ps, participants)
	sort.Slice(ps, func(i, j int) bool { return ps[i].PersonID < ps[j].PersonID })

	for _, p := range ps {
		if respondentRoles[strings.ToLower(strings.TrimSpace(p.Role))] {
			return p.PersonID
		}
	}
	return ps[0].PersonID
}

// participantLister is the slice of store.Store the resolver needs.
type participantLister interface {
	ListParticipants(ctx context.Context, interviewID string) ([]model.Participant, error)
}

// respondentCache memoizes ResolveRespondent per interview for one run.
type respondentCache struct {
	store participantLister
	byID  map[string]string
}

func newRespondentCache(st participantLister) *respondentCache {
	return &respondentCache{store: st, byID: make(map[string]string)}
}

func (c *respondentCache) get(ctx context.Context, interviewID string) (string, error) {
	if interviewID == "" {
		return "", nil
	}
	if id, ok := c.byID[interviewID]; ok {
		return id, nil
	}
	ps, err := c.store.ListParticipants(ctx, interviewID)
	if err != nil {
		return "", eris.Wrapf(err, "research: list participants for %s", interviewID)
	}
	id := ResolveRespondent(ps)
	c.byID[interviewID] = id
	return id, nil
}
