package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lens-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs offline
// runs against a fixture file and the pipeline tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer at a time; WAL lets readers proceed.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id             TEXT PRIMARY KEY,
	account_id     TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	description    TEXT,
	research_mode  TEXT,
	enabled_lenses TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS account_settings (
	account_id        TEXT PRIMARY KEY,
	default_lens_keys TEXT
);

CREATE TABLE IF NOT EXISTS interviews (
	id              TEXT PRIMARY KEY,
	project_id      TEXT REFERENCES projects(id),
	account_id      TEXT NOT NULL,
	title           TEXT,
	interview_date  DATETIME,
	duration_sec    INTEGER,
	lens_visibility TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS people (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS interview_people (
	interview_id TEXT NOT NULL REFERENCES interviews(id),
	person_id    TEXT NOT NULL REFERENCES people(id),
	role         TEXT,
	PRIMARY KEY (interview_id, person_id)
);

CREATE TABLE IF NOT EXISTS decision_questions (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	text       TEXT NOT NULL,
	rationale  TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS research_questions (
	id                   TEXT PRIMARY KEY,
	project_id           TEXT NOT NULL REFERENCES projects(id),
	decision_question_id TEXT NOT NULL REFERENCES decision_questions(id),
	text                 TEXT NOT NULL,
	rationale            TEXT,
	validation_gate      TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS project_answers (
	id                    TEXT PRIMARY KEY,
	project_id            TEXT NOT NULL REFERENCES projects(id),
	interview_id          TEXT,
	research_question_id  TEXT,
	decision_question_id  TEXT,
	question_text         TEXT NOT NULL DEFAULT '',
	status                TEXT NOT NULL DEFAULT 'pending',
	origin                TEXT,
	answer_text           TEXT,
	analysis_summary      TEXT,
	analysis_rationale    TEXT,
	analysis_next_steps   TEXT,
	analysis_run_metadata TEXT NOT NULL DEFAULT '{}',
	confidence            REAL NOT NULL DEFAULT 0,
	respondent_person_id  TEXT,
	answered_at           DATETIME,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_project_answers_identity ON project_answers (
	project_id,
	research_question_id IS NULL,
	COALESCE(research_question_id, ''),
	COALESCE(decision_question_id, ''),
	COALESCE(interview_id, '')
);

CREATE TABLE IF NOT EXISTS evidence (
	id                TEXT PRIMARY KEY,
	project_id        TEXT NOT NULL REFERENCES projects(id),
	interview_id      TEXT,
	verbatim          TEXT NOT NULL,
	gist              TEXT,
	support           TEXT,
	context_summary   TEXT,
	project_answer_id TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_evidence_project ON evidence(project_id);
CREATE INDEX IF NOT EXISTS idx_evidence_interview ON evidence(interview_id, created_at);

CREATE TABLE IF NOT EXISTS project_answer_evidence (
	project_id   TEXT NOT NULL,
	answer_id    TEXT NOT NULL REFERENCES project_answers(id),
	evidence_id  TEXT NOT NULL REFERENCES evidence(id),
	interview_id TEXT,
	source       TEXT NOT NULL DEFAULT 'analysis',
	text         TEXT,
	payload      TEXT NOT NULL DEFAULT '{}',
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (project_id, answer_id, evidence_id)
);

CREATE TABLE IF NOT EXISTS project_research_analysis_runs (
	id                  TEXT PRIMARY KEY,
	project_id          TEXT NOT NULL,
	custom_instructions TEXT,
	min_confidence      REAL NOT NULL,
	run_summary         TEXT,
	recommended_actions TEXT NOT NULL DEFAULT '[]',
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS project_question_analysis (
	run_id                   TEXT NOT NULL REFERENCES project_research_analysis_runs(id),
	project_id               TEXT NOT NULL,
	question_type            TEXT NOT NULL,
	question_id              TEXT NOT NULL,
	decision_question_id     TEXT,
	summary                  TEXT,
	confidence               REAL,
	next_steps               TEXT,
	goal_achievement_summary TEXT,
	created_at               DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS conversation_lens_analyses (
	id               TEXT PRIMARY KEY,
	interview_id     TEXT NOT NULL,
	template_key     TEXT NOT NULL,
	account_id       TEXT NOT NULL,
	project_id       TEXT,
	analysis_data    TEXT NOT NULL DEFAULT '{}',
	confidence_score REAL NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'pending',
	error_message    TEXT,
	processed_by     TEXT,
	processed_at     DATETIME,
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (interview_id, template_key)
);

CREATE TABLE IF NOT EXISTS conversation_lens_summaries (
	id                  TEXT PRIMARY KEY,
	project_id          TEXT NOT NULL,
	template_key        TEXT NOT NULL,
	account_id          TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'pending',
	interview_count     INTEGER NOT NULL DEFAULT 0,
	input_fingerprint   TEXT,
	synthesis_data      TEXT,
	executive_summary   TEXT,
	key_takeaways       TEXT NOT NULL DEFAULT '[]',
	recommendations     TEXT NOT NULL DEFAULT '[]',
	conflicts_to_review TEXT NOT NULL DEFAULT '[]',
	overall_confidence  REAL NOT NULL DEFAULT 0,
	custom_instructions TEXT,
	error_message       TEXT,
	processed_by        TEXT,
	processed_at        DATETIME,
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (project_id, template_key)
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Projects and settings ---

func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	var p model.Project
	var desc, mode, lenses sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, name, description, research_mode, enabled_lenses FROM projects WHERE id = ?`,
		projectID,
	).Scan(&p.ID, &p.AccountID, &p.Name, &desc, &mode, &lenses)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: project %s", projectID)
		}
		return nil, eris.Wrapf(err, "sqlite: get project %s", projectID)
	}
	p.Description = desc.String
	p.ResearchMode = mode.String
	if err := unmarshalStrings([]byte(lenses.String), &p.EnabledLenses); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal enabled_lenses")
	}
	return &p, nil
}

func (s *SQLiteStore) GetAccountSettings(ctx context.Context, accountID string) (*model.AccountSettings, error) {
	settings := model.AccountSettings{AccountID: accountID}
	var keys sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT default_lens_keys FROM account_settings WHERE account_id = ?`, accountID,
	).Scan(&keys)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &settings, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get account settings %s", accountID)
	}
	if err := unmarshalStrings([]byte(keys.String), &settings.DefaultLensKeys); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal default_lens_keys")
	}
	return &settings, nil
}

// --- Question catalog ---

func (s *SQLiteStore) ListDecisionQuestions(ctx context.Context, projectID string) ([]model.DecisionQuestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, text, rationale FROM decision_questions WHERE project_id = ? ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list decision questions")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DecisionQuestion
	for rows.Next() {
		var q model.DecisionQuestion
		var rationale sql.NullString
		if err := rows.Scan(&q.ID, &q.ProjectID, &q.Text, &rationale); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision question")
		}
		q.Rationale = rationale.String
		out = append(out, q)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list decision questions iterate")
}

func (s *SQLiteStore) ListResearchQuestions(ctx context.Context, projectID string) ([]model.ResearchQuestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, text, rationale, decision_question_id, validation_gate
		 FROM research_questions WHERE project_id = ? ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list research questions")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ResearchQuestion
	for rows.Next() {
		var q model.ResearchQuestion
		var rationale, gate sql.NullString
		if err := rows.Scan(&q.ID, &q.ProjectID, &q.Text, &rationale, &q.DecisionQuestionID, &gate); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan research question")
		}
		q.Rationale = rationale.String
		q.ValidationGate = model.ValidationGate(gate.String)
		out = append(out, q)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list research questions iterate")
}

// --- Evidence ---

func (s *SQLiteStore) ListEvidence(ctx context.Context, projectID string, evidenceIDs []string) ([]model.Evidence, error) {
	query := `SELECT ` + evidenceColumns + ` FROM evidence WHERE project_id = ?`
	args := []any{projectID}
	if len(evidenceIDs) > 0 {
		query += ` AND id IN (` + placeholders(len(evidenceIDs)) + `)`
		for _, id := range evidenceIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY created_at, id`
	return s.queryEvidence(ctx, query, args...)
}

func (s *SQLiteStore) ListInterviewEvidence(ctx context.Context, interviewID string) ([]model.Evidence, error) {
	return s.queryEvidence(ctx,
		`SELECT `+evidenceColumns+` FROM evidence WHERE interview_id = ? ORDER BY created_at, id`,
		interviewID,
	)
}

func (s *SQLiteStore) queryEvidence(ctx context.Context, query string, args ...any) ([]model.Evidence, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evidence")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Evidence
	for rows.Next() {
		var e model.Evidence
		var interviewID, gist, support, ctxSummary, prior sql.NullString
		if err := rows.Scan(&e.ID, &e.ProjectID, &interviewID, &e.Verbatim, &gist, &support, &ctxSummary, &prior, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan evidence")
		}
		e.InterviewID = interviewID.String
		e.Gist = gist.String
		e.Support = model.ParseRelationship(support.String)
		e.ContextSummary = ctxSummary.String
		e.PriorAnswerID = prior.String
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list evidence iterate")
}

func (s *SQLiteStore) SetEvidencePriorAnswer(ctx context.Context, evidenceID, answerID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE evidence SET project_answer_id = ? WHERE id = ?`, answerID, evidenceID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set prior answer on evidence %s", evidenceID)
	}
	return checkRowsAffected(res, "evidence", evidenceID)
}

// --- Answers ---

func (s *SQLiteStore) ListAnswers(ctx context.Context, projectID string) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+answerColumns+` FROM project_answers WHERE project_id = ? ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list answers")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Answer
	for rows.Next() {
		var a model.Answer
		var interviewID, rqID, dqID, origin, text, summary, rationale, next, respondent sql.NullString
		var meta string
		var answeredAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.ProjectID, &interviewID, &rqID, &dqID, &a.QuestionText,
			&a.Status, &origin, &text, &summary, &rationale, &next,
			&meta, &a.Confidence, &respondent, &answeredAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan answer")
		}
		a.InterviewID = interviewID.String
		a.ResearchQuestionID = rqID.String
		a.DecisionQuestionID = dqID.String
		a.Origin = origin.String
		a.AnswerText = text.String
		a.AnalysisSummary = summary.String
		a.AnalysisRationale = rationale.String
		a.AnalysisNextSteps = next.String
		a.RespondentPersonID = respondent.String
		if answeredAt.Valid {
			t := answeredAt.Time
			a.AnsweredAt = &t
		}
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &a.RunMetadata); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal run metadata for answer %s", a.ID)
			}
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list answers iterate")
}

func (s *SQLiteStore) InsertAnswer(ctx context.Context, a *model.Answer) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	meta, err := json.Marshal(a.RunMetadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run metadata")
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_answers (`+answerColumns+`, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProjectID, nullable(a.InterviewID), nullable(a.ResearchQuestionID), nullable(a.DecisionQuestionID), a.QuestionText,
		string(a.Status), nullable(a.Origin), nullable(a.AnswerText), nullable(a.AnalysisSummary), nullable(a.AnalysisRationale), nullable(a.AnalysisNextSteps),
		string(meta), a.Confidence, nullable(a.RespondentPersonID), a.AnsweredAt, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert answer %s", a.Key())
	}
	return nil
}

func (s *SQLiteStore) UpdateAnswer(ctx context.Context, a *model.Answer) error {
	meta, err := json.Marshal(a.RunMetadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run metadata")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE project_answers SET question_text = ?, status = ?, origin = ?, answer_text = ?,
		 analysis_summary = ?, analysis_rationale = ?, analysis_next_steps = ?, analysis_run_metadata = ?,
		 confidence = ?, respondent_person_id = ?, answered_at = ?, updated_at = ?
		 WHERE id = ?`,
		a.QuestionText, string(a.Status), nullable(a.Origin), nullable(a.AnswerText),
		nullable(a.AnalysisSummary), nullable(a.AnalysisRationale), nullable(a.AnalysisNextSteps), string(meta),
		a.Confidence, nullable(a.RespondentPersonID), a.AnsweredAt, time.Now().UTC(),
		a.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update answer %s", a.ID)
	}
	return checkRowsAffected(res, "answer", a.ID)
}

func (s *SQLiteStore) UpsertEvidenceLinks(ctx context.Context, links []model.EvidenceLink) (int64, error) {
	if len(links) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO project_answer_evidence (`+strings.Join(evidenceLinkColumns, ", ")+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 `+conflictClause(EvidenceLinkConflictKey)+` DO UPDATE SET
		 interview_id = excluded.interview_id, source = excluded.source, text = excluded.text,
		 payload = excluded.payload, updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare link upsert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for _, l := range links {
		payload, err := json.Marshal(l.Payload)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal link payload")
		}
		res, err := stmt.ExecContext(ctx,
			l.ProjectID, l.AnswerID, l.EvidenceID, nullable(l.InterviewID), l.Source, nullable(l.Text), string(payload), now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert link %s/%s", l.AnswerID, l.EvidenceID)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit link upsert")
	}
	return n, nil
}

func (s *SQLiteStore) ListEvidenceLinks(ctx context.Context, projectID string) ([]model.EvidenceLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, answer_id, evidence_id, interview_id, source, text, payload
		 FROM project_answer_evidence WHERE project_id = ? ORDER BY answer_id, evidence_id`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evidence links")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.EvidenceLink
	for rows.Next() {
		var l model.EvidenceLink
		var interviewID, text sql.NullString
		var payload string
		if err := rows.Scan(&l.ProjectID, &l.AnswerID, &l.EvidenceID, &interviewID, &l.Source, &text, &payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan evidence link")
		}
		l.InterviewID = interviewID.String
		l.Text = text.String
		if err := json.Unmarshal([]byte(payload), &l.Payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal link payload")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list evidence links iterate")
}

// --- Analysis runs ---

func (s *SQLiteStore) CreateAnalysisRun(ctx context.Context, run *model.AnalysisRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	actions, err := json.Marshal(nonNilStrings(run.RecommendedActions))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal recommended actions")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_research_analysis_runs
		 (id, project_id, custom_instructions, min_confidence, run_summary, recommended_actions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ProjectID, nullable(run.CustomInstructions), run.MinConfidence,
		nullable(run.RunSummary), string(actions), run.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert analysis run for project %s", run.ProjectID)
}

func (s *SQLiteStore) ListAnalysisRuns(ctx context.Context, projectID string, limit int) ([]model.AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, custom_instructions, min_confidence, run_summary, recommended_actions, created_at
		 FROM project_research_analysis_runs WHERE project_id = ? ORDER BY created_at DESC LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analysis runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AnalysisRun
	for rows.Next() {
		var r model.AnalysisRun
		var instr, summary sql.NullString
		var actions string
		if err := rows.Scan(&r.ID, &r.ProjectID, &instr, &r.MinConfidence, &summary, &actions, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis run")
		}
		r.CustomInstructions = instr.String
		r.RunSummary = summary.String
		if err := unmarshalStrings([]byte(actions), &r.RecommendedActions); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal recommended actions")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list analysis runs iterate")
}

func (s *SQLiteStore) AppendQuestionAnalyses(ctx context.Context, qas []model.QuestionAnalysis) error {
	if len(qas) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, q := range qas {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO project_question_analysis (`+strings.Join(questionAnalysisColumns, ", ")+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.RunID, q.ProjectID, string(q.QuestionKind), q.QuestionID, nullable(q.DecisionQuestionID),
			q.Summary, q.Confidence, nullable(q.NextSteps), nullable(q.GoalAchievementSummary),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert question analysis %s", q.QuestionID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit question analyses")
}

// CountQuestionAnalyses returns the number of logged question summaries for a run.
func (s *SQLiteStore) CountQuestionAnalyses(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_question_analysis WHERE run_id = ?`, runID,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count question analyses")
}

// --- Interviews ---

func (s *SQLiteStore) GetInterview(ctx context.Context, interviewID string) (*model.Interview, error) {
	var iv model.Interview
	var projectID, title, visibility sql.NullString
	var duration sql.NullInt64
	var date sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, account_id, title, interview_date, duration_sec, lens_visibility
		 FROM interviews WHERE id = ?`,
		interviewID,
	).Scan(&iv.ID, &projectID, &iv.AccountID, &title, &date, &duration, &visibility)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: interview %s", interviewID)
		}
		return nil, eris.Wrapf(err, "sqlite: get interview %s", interviewID)
	}
	iv.ProjectID = projectID.String
	iv.Title = title.String
	iv.LensVisibility = visibility.String
	iv.DurationSec = int(duration.Int64)
	if date.Valid {
		t := date.Time
		iv.InterviewDate = &t
	}
	return &iv, nil
}

func (s *SQLiteStore) ListParticipants(ctx context.Context, interviewID string) ([]model.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ip.interview_id, ip.person_id, COALESCE(p.name, ''), COALESCE(ip.role, '')
		 FROM interview_people ip LEFT JOIN people p ON p.id = ip.person_id
		 WHERE ip.interview_id = ? ORDER BY ip.person_id`,
		interviewID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list participants")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.InterviewID, &p.PersonID, &p.DisplayName, &p.Role); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan participant")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list participants iterate")
}

// --- Lens analyses ---

func (s *SQLiteStore) UpsertLensAnalysis(ctx context.Context, a *model.LensAnalysis) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	data, err := json.Marshal(a.Data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis data")
	}
	a.UpdatedAt = time.Now().UTC()

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO conversation_lens_analyses (`+lensAnalysisColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 `+conflictClause(LensAnalysisConflictKey)+` DO UPDATE SET
		 account_id = excluded.account_id, project_id = excluded.project_id,
		 analysis_data = excluded.analysis_data, confidence_score = excluded.confidence_score,
		 status = excluded.status, error_message = excluded.error_message,
		 processed_by = excluded.processed_by, processed_at = excluded.processed_at,
		 updated_at = excluded.updated_at
		 RETURNING id`,
		a.ID, a.InterviewID, a.TemplateKey, a.AccountID, nullable(a.ProjectID), string(data),
		a.ConfidenceScore, string(a.Status), nullable(a.ErrorMessage), nullable(a.ProcessedBy), a.ProcessedAt, a.UpdatedAt,
	).Scan(&a.ID)
	return eris.Wrapf(err, "sqlite: upsert lens analysis %s/%s", a.InterviewID, a.TemplateKey)
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLensAnalysis(row sqlScanner) (*model.LensAnalysis, error) {
	var a model.LensAnalysis
	var projectID, errMsg, processedBy sql.NullString
	var data string
	var processedAt sql.NullTime
	if err := row.Scan(&a.ID, &a.InterviewID, &a.TemplateKey, &a.AccountID, &projectID, &data,
		&a.ConfidenceScore, &a.Status, &errMsg, &processedBy, &processedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ProjectID = projectID.String
	a.ErrorMessage = errMsg.String
	a.ProcessedBy = processedBy.String
	if processedAt.Valid {
		t := processedAt.Time
		a.ProcessedAt = &t
	}
	a.Data = model.EmptyAnalysisData()
	if data != "" {
		if err := json.Unmarshal([]byte(data), &a.Data); err != nil {
			return nil, eris.Wrap(err, "unmarshal analysis data")
		}
	}
	return &a, nil
}

func (s *SQLiteStore) GetLensAnalysis(ctx context.Context, interviewID, templateKey string) (*model.LensAnalysis, error) {
	a, err := scanSQLiteLensAnalysis(s.db.QueryRowContext(ctx,
		`SELECT `+lensAnalysisColumns+` FROM conversation_lens_analyses WHERE interview_id = ? AND template_key = ?`,
		interviewID, templateKey,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get lens analysis %s/%s", interviewID, templateKey)
	}
	return a, nil
}

func (s *SQLiteStore) ListCompletedLensAnalyses(ctx context.Context, projectID, templateKey string) ([]model.LensAnalysis, error) {
	query := `SELECT ` + lensAnalysisColumns + ` FROM conversation_lens_analyses WHERE project_id = ? AND status = ?`
	args := []any{projectID, string(model.LensStatusCompleted)}
	if templateKey != "" {
		query += ` AND template_key = ?`
		args = append(args, templateKey)
	}
	query += ` ORDER BY template_key, interview_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list completed lens analyses")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.LensAnalysis
	for rows.Next() {
		a, err := scanSQLiteLensAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lens analysis")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list completed lens analyses iterate")
}

// CountLensAnalyses returns the number of stored rows for an (interview, template) pair.
func (s *SQLiteStore) CountLensAnalyses(ctx context.Context, interviewID, templateKey string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_lens_analyses WHERE interview_id = ? AND template_key = ?`,
		interviewID, templateKey,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count lens analyses")
}

func (s *SQLiteStore) ListSynthesisTargets(ctx context.Context) ([]model.SynthesisTarget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT project_id, account_id, template_key FROM conversation_lens_analyses
		 WHERE status = ? AND project_id IS NOT NULL ORDER BY project_id, template_key`,
		string(model.LensStatusCompleted),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list synthesis targets")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SynthesisTarget
	for rows.Next() {
		var t model.SynthesisTarget
		if err := rows.Scan(&t.ProjectID, &t.AccountID, &t.TemplateKey); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan synthesis target")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list synthesis targets iterate")
}

// --- Lens summaries ---

func (s *SQLiteStore) UpsertLensSummary(ctx context.Context, sum *model.LensSummary) error {
	if sum.ID == "" {
		sum.ID = uuid.New().String()
	}
	takeaways, recs, conflicts, err := marshalSummaryLists(sum)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary lists")
	}
	var synthesis any
	if len(sum.SynthesisData) > 0 {
		synthesis = string(sum.SynthesisData)
	}
	sum.UpdatedAt = time.Now().UTC()

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO conversation_lens_summaries (`+lensSummaryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 `+conflictClause(LensSummaryConflictKey)+` DO UPDATE SET
		 account_id = excluded.account_id, status = excluded.status,
		 interview_count = excluded.interview_count, input_fingerprint = excluded.input_fingerprint,
		 synthesis_data = excluded.synthesis_data, executive_summary = excluded.executive_summary,
		 key_takeaways = excluded.key_takeaways, recommendations = excluded.recommendations,
		 conflicts_to_review = excluded.conflicts_to_review, overall_confidence = excluded.overall_confidence,
		 custom_instructions = excluded.custom_instructions, error_message = excluded.error_message,
		 processed_by = excluded.processed_by, processed_at = excluded.processed_at,
		 updated_at = excluded.updated_at
		 RETURNING id`,
		sum.ID, sum.ProjectID, sum.TemplateKey, sum.AccountID, string(sum.Status), sum.InterviewCount, nullable(sum.InputFingerprint),
		synthesis, nullable(sum.ExecutiveSummary), string(takeaways), string(recs), string(conflicts),
		sum.OverallConfidence, nullable(sum.CustomInstructions), nullable(sum.ErrorMessage), nullable(sum.ProcessedBy), sum.ProcessedAt, sum.UpdatedAt,
	).Scan(&sum.ID)
	return eris.Wrapf(err, "sqlite: upsert lens summary %s/%s", sum.ProjectID, sum.TemplateKey)
}

func scanSQLiteLensSummary(row sqlScanner) (*model.LensSummary, error) {
	var sum model.LensSummary
	var fingerprint, synthesis, exec, instr, errMsg, processedBy sql.NullString
	var takeaways, recs, conflicts string
	var processedAt sql.NullTime
	if err := row.Scan(&sum.ID, &sum.ProjectID, &sum.TemplateKey, &sum.AccountID, &sum.Status, &sum.InterviewCount, &fingerprint,
		&synthesis, &exec, &takeaways, &recs, &conflicts,
		&sum.OverallConfidence, &instr, &errMsg, &processedBy, &processedAt, &sum.UpdatedAt); err != nil {
		return nil, err
	}
	sum.InputFingerprint = fingerprint.String
	sum.ExecutiveSummary = exec.String
	sum.CustomInstructions = instr.String
	sum.ErrorMessage = errMsg.String
	sum.ProcessedBy = processedBy.String
	if synthesis.Valid && synthesis.String != "" {
		sum.SynthesisData = json.RawMessage(synthesis.String)
	}
	if processedAt.Valid {
		t := processedAt.Time
		sum.ProcessedAt = &t
	}
	for _, l := range []struct {
		raw string
		dst *[]string
	}{{takeaways, &sum.KeyTakeaways}, {recs, &sum.Recommendations}, {conflicts, &sum.ConflictsToReview}} {
		if err := unmarshalStrings([]byte(l.raw), l.dst); err != nil {
			return nil, eris.Wrap(err, "unmarshal summary list")
		}
	}
	return &sum, nil
}

func (s *SQLiteStore) GetLensSummary(ctx context.Context, projectID, templateKey string) (*model.LensSummary, error) {
	sum, err := scanSQLiteLensSummary(s.db.QueryRowContext(ctx,
		`SELECT `+lensSummaryColumns+` FROM conversation_lens_summaries WHERE project_id = ? AND template_key = ?`,
		projectID, templateKey,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get lens summary %s/%s", projectID, templateKey)
	}
	return sum, nil
}

func (s *SQLiteStore) ListLensSummaries(ctx context.Context, projectID string) ([]model.LensSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lensSummaryColumns+` FROM conversation_lens_summaries WHERE project_id = ? ORDER BY template_key`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list lens summaries")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.LensSummary
	for rows.Next() {
		sum, err := scanSQLiteLensSummary(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lens summary")
		}
		out = append(out, *sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list lens summaries iterate")
}

// --- helpers ---

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}
