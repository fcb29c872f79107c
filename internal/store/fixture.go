package store

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lens-cli/internal/model"
)

// Person is a row of the people table.
type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Fixture is the externally owned data (projects, interviews, people,
// questions, evidence) the pipelines read but never create. Offline runs load
// it into a SQLite store.
type Fixture struct {
	Projects          []model.Project          `json:"projects"`
	AccountSettings   []model.AccountSettings  `json:"account_settings"`
	Interviews        []model.Interview        `json:"interviews"`
	People            []Person                 `json:"people"`
	Participants      []model.Participant      `json:"participants"`
	DecisionQuestions []model.DecisionQuestion `json:"decision_questions"`
	ResearchQuestions []model.ResearchQuestion `json:"research_questions"`
	Evidence          []model.Evidence         `json:"evidence"`
}

// ReadFixture decodes a JSON fixture file.
func ReadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fixture: read %s", path)
	}
	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrapf(err, "fixture: decode %s", path)
	}
	return &f, nil
}

// LoadFixture inserts (or replaces) every fixture row in one transaction.
func (s *SQLiteStore) LoadFixture(ctx context.Context, f *Fixture) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin fixture tx")
	}
	defer tx.Rollback() //nolint:errcheck

	exec := func(what, query string, args ...any) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return eris.Wrapf(err, "sqlite: load %s", what)
		}
		return nil
	}

	for _, p := range f.Projects {
		lenses, err := json.Marshal(p.EnabledLenses)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal enabled_lenses")
		}
		if p.EnabledLenses == nil {
			lenses = nil
		}
		if err := exec("project", `INSERT OR REPLACE INTO projects (id, account_id, name, description, research_mode, enabled_lenses)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.AccountID, p.Name, nullable(p.Description), nullable(p.ResearchMode), nullable(string(lenses))); err != nil {
			return err
		}
	}
	for _, a := range f.AccountSettings {
		keys, err := json.Marshal(a.DefaultLensKeys)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal default_lens_keys")
		}
		if err := exec("account settings", `INSERT OR REPLACE INTO account_settings (account_id, default_lens_keys) VALUES (?, ?)`,
			a.AccountID, string(keys)); err != nil {
			return err
		}
	}
	for _, iv := range f.Interviews {
		if err := exec("interview", `INSERT OR REPLACE INTO interviews
			(id, project_id, account_id, title, interview_date, duration_sec, lens_visibility) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			iv.ID, nullable(iv.ProjectID), iv.AccountID, nullable(iv.Title), iv.InterviewDate, iv.DurationSec, nullable(iv.LensVisibility)); err != nil {
			return err
		}
	}
	for _, p := range f.People {
		if err := exec("person", `INSERT OR REPLACE INTO people (id, name) VALUES (?, ?)`, p.ID, p.Name); err != nil {
			return err
		}
	}
	for _, p := range f.Participants {
		if err := exec("participant", `INSERT OR REPLACE INTO interview_people (interview_id, person_id, role) VALUES (?, ?, ?)`,
			p.InterviewID, p.PersonID, nullable(p.Role)); err != nil {
			return err
		}
	}
	for _, q := range f.DecisionQuestions {
		if err := exec("decision question", `INSERT OR REPLACE INTO decision_questions (id, project_id, text, rationale) VALUES (?, ?, ?, ?)`,
			q.ID, q.ProjectID, q.Text, nullable(q.Rationale)); err != nil {
			return err
		}
	}
	for _, q := range f.ResearchQuestions {
		if err := exec("research question", `INSERT OR REPLACE INTO research_questions
			(id, project_id, decision_question_id, text, rationale, validation_gate) VALUES (?, ?, ?, ?, ?, ?)`,
			q.ID, q.ProjectID, q.DecisionQuestionID, q.Text, nullable(q.Rationale), nullable(string(q.ValidationGate))); err != nil {
			return err
		}
	}
	for _, e := range f.Evidence {
		created := e.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if err := exec("evidence", `INSERT OR REPLACE INTO evidence
			(id, project_id, interview_id, verbatim, gist, support, context_summary, project_answer_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.ProjectID, nullable(e.InterviewID), e.Verbatim, nullable(e.Gist), string(e.Support),
			nullable(e.ContextSummary), nullable(e.PriorAnswerID), created); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit fixture")
}
