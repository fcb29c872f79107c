package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lens-cli/internal/db"
	"github.com/sells-group/lens-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	dsn     string
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, dsn: connString, closeFn: pool.Close}, nil
}

// Pool returns the underlying pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(_ context.Context) error {
	return runMigrations(s.dsn)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Projects and settings ---

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	var p model.Project
	var desc, mode *string
	var lenses []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, account_id, name, description, research_mode, enabled_lenses FROM projects WHERE id = $1`,
		projectID,
	).Scan(&p.ID, &p.AccountID, &p.Name, &desc, &mode, &lenses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: project %s", projectID)
		}
		return nil, eris.Wrapf(err, "postgres: get project %s", projectID)
	}
	p.Description = deref(desc)
	p.ResearchMode = deref(mode)
	if err := unmarshalStrings(lenses, &p.EnabledLenses); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal enabled_lenses")
	}
	return &p, nil
}

func (s *PostgresStore) GetAccountSettings(ctx context.Context, accountID string) (*model.AccountSettings, error) {
	settings := model.AccountSettings{AccountID: accountID}
	var keys []byte

	err := s.pool.QueryRow(ctx,
		`SELECT default_lens_keys FROM account_settings WHERE account_id = $1`,
		accountID,
	).Scan(&keys)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &settings, nil
		}
		return nil, eris.Wrapf(err, "postgres: get account settings %s", accountID)
	}
	if err := unmarshalStrings(keys, &settings.DefaultLensKeys); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal default_lens_keys")
	}
	return &settings, nil
}

// --- Question catalog ---

func (s *PostgresStore) ListDecisionQuestions(ctx context.Context, projectID string) ([]model.DecisionQuestion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, text, rationale FROM decision_questions WHERE project_id = $1 ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list decision questions")
	}
	defer rows.Close()

	var out []model.DecisionQuestion
	for rows.Next() {
		var q model.DecisionQuestion
		var rationale *string
		if err := rows.Scan(&q.ID, &q.ProjectID, &q.Text, &rationale); err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision question")
		}
		q.Rationale = deref(rationale)
		out = append(out, q)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list decision questions iterate")
}

func (s *PostgresStore) ListResearchQuestions(ctx context.Context, projectID string) ([]model.ResearchQuestion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, text, rationale, decision_question_id, validation_gate
		 FROM research_questions WHERE project_id = $1 ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list research questions")
	}
	defer rows.Close()

	var out []model.ResearchQuestion
	for rows.Next() {
		var q model.ResearchQuestion
		var rationale, gate *string
		if err := rows.Scan(&q.ID, &q.ProjectID, &q.Text, &rationale, &q.DecisionQuestionID, &gate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan research question")
		}
		q.Rationale = deref(rationale)
		q.ValidationGate = model.ValidationGate(deref(gate))
		out = append(out, q)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list research questions iterate")
}

// --- Evidence ---

const evidenceColumns = `id, project_id, interview_id, verbatim, gist, support, context_summary, project_answer_id, created_at`

func scanEvidence(row pgx.Row) (model.Evidence, error) {
	var e model.Evidence
	var interviewID, gist, support, ctxSummary, prior *string
	err := row.Scan(&e.ID, &e.ProjectID, &interviewID, &e.Verbatim, &gist, &support, &ctxSummary, &prior, &e.CreatedAt)
	e.InterviewID = deref(interviewID)
	e.Gist = deref(gist)
	e.Support = model.ParseRelationship(deref(support))
	e.ContextSummary = deref(ctxSummary)
	e.PriorAnswerID = deref(prior)
	return e, err
}

func (s *PostgresStore) ListEvidence(ctx context.Context, projectID string, evidenceIDs []string) ([]model.Evidence, error) {
	query := `SELECT ` + evidenceColumns + ` FROM evidence WHERE project_id = $1`
	args := []any{projectID}
	if len(evidenceIDs) > 0 {
		query += ` AND id = ANY($2)`
		args = append(args, evidenceIDs)
	}
	query += ` ORDER BY created_at, id`

	return s.queryEvidence(ctx, query, args...)
}

func (s *PostgresStore) ListInterviewEvidence(ctx context.Context, interviewID string) ([]model.Evidence, error) {
	return s.queryEvidence(ctx,
		`SELECT `+evidenceColumns+` FROM evidence WHERE interview_id = $1 ORDER BY created_at, id`,
		interviewID,
	)
}

func (s *PostgresStore) queryEvidence(ctx context.Context, query string, args ...any) ([]model.Evidence, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evidence")
	}
	defer rows.Close()

	var out []model.Evidence
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan evidence")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list evidence iterate")
}

func (s *PostgresStore) SetEvidencePriorAnswer(ctx context.Context, evidenceID, answerID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE evidence SET project_answer_id = $1 WHERE id = $2`,
		answerID, evidenceID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set prior answer on evidence %s", evidenceID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: evidence %s", evidenceID)
	}
	return nil
}

// --- Answers ---

const answerColumns = `id, project_id, interview_id, research_question_id, decision_question_id, question_text,
	status, origin, answer_text, analysis_summary, analysis_rationale, analysis_next_steps,
	analysis_run_metadata, confidence, respondent_person_id, answered_at`

func (s *PostgresStore) ListAnswers(ctx context.Context, projectID string) ([]model.Answer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+answerColumns+` FROM project_answers WHERE project_id = $1 ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list answers")
	}
	defer rows.Close()

	var out []model.Answer
	for rows.Next() {
		var a model.Answer
		var interviewID, rqID, dqID, origin, text, summary, rationale, next, respondent *string
		var meta []byte
		if err := rows.Scan(&a.ID, &a.ProjectID, &interviewID, &rqID, &dqID, &a.QuestionText,
			&a.Status, &origin, &text, &summary, &rationale, &next,
			&meta, &a.Confidence, &respondent, &a.AnsweredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan answer")
		}
		a.InterviewID = deref(interviewID)
		a.ResearchQuestionID = deref(rqID)
		a.DecisionQuestionID = deref(dqID)
		a.Origin = deref(origin)
		a.AnswerText = deref(text)
		a.AnalysisSummary = deref(summary)
		a.AnalysisRationale = deref(rationale)
		a.AnalysisNextSteps = deref(next)
		a.RespondentPersonID = deref(respondent)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.RunMetadata); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal run metadata for answer %s", a.ID)
			}
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list answers iterate")
}

func (s *PostgresStore) InsertAnswer(ctx context.Context, a *model.Answer) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	meta, err := json.Marshal(a.RunMetadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run metadata")
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO project_answers (`+answerColumns+`, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		a.ID, a.ProjectID, nullable(a.InterviewID), nullable(a.ResearchQuestionID), nullable(a.DecisionQuestionID), a.QuestionText,
		string(a.Status), nullable(a.Origin), nullable(a.AnswerText), nullable(a.AnalysisSummary), nullable(a.AnalysisRationale), nullable(a.AnalysisNextSteps),
		meta, a.Confidence, nullable(a.RespondentPersonID), a.AnsweredAt, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert answer %s", a.Key())
	}
	return nil
}

func (s *PostgresStore) UpdateAnswer(ctx context.Context, a *model.Answer) error {
	meta, err := json.Marshal(a.RunMetadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run metadata")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE project_answers SET question_text = $1, status = $2, origin = $3, answer_text = $4,
		 analysis_summary = $5, analysis_rationale = $6, analysis_next_steps = $7, analysis_run_metadata = $8,
		 confidence = $9, respondent_person_id = $10, answered_at = $11, updated_at = $12
		 WHERE id = $13`,
		a.QuestionText, string(a.Status), nullable(a.Origin), nullable(a.AnswerText),
		nullable(a.AnalysisSummary), nullable(a.AnalysisRationale), nullable(a.AnalysisNextSteps), meta,
		a.Confidence, nullable(a.RespondentPersonID), a.AnsweredAt, time.Now().UTC(),
		a.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update answer %s", a.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: answer %s", a.ID)
	}
	return nil
}

var evidenceLinkColumns = []string{"project_id", "answer_id", "evidence_id", "interview_id", "source", "text", "payload", "updated_at"}

func (s *PostgresStore) UpsertEvidenceLinks(ctx context.Context, links []model.EvidenceLink) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(links))
	for _, l := range links {
		payload, err := json.Marshal(l.Payload)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal link payload")
		}
		rows = append(rows, []any{
			l.ProjectID, l.AnswerID, l.EvidenceID, nullable(l.InterviewID), l.Source, nullable(l.Text), payload, now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "project_answer_evidence",
		Columns:      evidenceLinkColumns,
		ConflictKeys: EvidenceLinkConflictKey,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert evidence links")
	}
	return n, nil
}

func (s *PostgresStore) ListEvidenceLinks(ctx context.Context, projectID string) ([]model.EvidenceLink, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT project_id, answer_id, evidence_id, interview_id, source, text, payload
		 FROM project_answer_evidence WHERE project_id = $1 ORDER BY answer_id, evidence_id`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evidence links")
	}
	defer rows.Close()

	var out []model.EvidenceLink
	for rows.Next() {
		var l model.EvidenceLink
		var interviewID, text *string
		var payload []byte
		if err := rows.Scan(&l.ProjectID, &l.AnswerID, &l.EvidenceID, &interviewID, &l.Source, &text, &payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan evidence link")
		}
		l.InterviewID = deref(interviewID)
		l.Text = deref(text)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &l.Payload); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal link payload")
			}
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list evidence links iterate")
}

// --- Analysis runs ---

func (s *PostgresStore) CreateAnalysisRun(ctx context.Context, run *model.AnalysisRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	actions, err := json.Marshal(nonNilStrings(run.RecommendedActions))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal recommended actions")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO project_research_analysis_runs
		 (id, project_id, custom_instructions, min_confidence, run_summary, recommended_actions, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.ProjectID, nullable(run.CustomInstructions), run.MinConfidence,
		nullable(run.RunSummary), actions, run.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert analysis run for project %s", run.ProjectID)
	}
	return nil
}

func (s *PostgresStore) ListAnalysisRuns(ctx context.Context, projectID string, limit int) ([]model.AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, custom_instructions, min_confidence, run_summary, recommended_actions, created_at
		 FROM project_research_analysis_runs WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2`,
		projectID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analysis runs")
	}
	defer rows.Close()

	var out []model.AnalysisRun
	for rows.Next() {
		var r model.AnalysisRun
		var instr, summary *string
		var actions []byte
		if err := rows.Scan(&r.ID, &r.ProjectID, &instr, &r.MinConfidence, &summary, &actions, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis run")
		}
		r.CustomInstructions = deref(instr)
		r.RunSummary = deref(summary)
		if err := unmarshalStrings(actions, &r.RecommendedActions); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal recommended actions")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list analysis runs iterate")
}

var questionAnalysisColumns = []string{
	"run_id", "project_id", "question_type", "question_id", "decision_question_id",
	"summary", "confidence", "next_steps", "goal_achievement_summary",
}

func (s *PostgresStore) AppendQuestionAnalyses(ctx context.Context, qas []model.QuestionAnalysis) error {
	rows := make([][]any, 0, len(qas))
	for _, q := range qas {
		rows = append(rows, []any{
			q.RunID, q.ProjectID, string(q.QuestionKind), q.QuestionID, nullable(q.DecisionQuestionID),
			q.Summary, q.Confidence, nullable(q.NextSteps), nullable(q.GoalAchievementSummary),
		})
	}
	if _, err := db.CopyFrom(ctx, s.pool, "project_question_analysis", questionAnalysisColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: append question analyses")
	}
	return nil
}

// --- Interviews ---

func (s *PostgresStore) GetInterview(ctx context.Context, interviewID string) (*model.Interview, error) {
	var iv model.Interview
	var projectID, title, visibility *string
	var duration *int

	err := s.pool.QueryRow(ctx,
		`SELECT id, project_id, account_id, title, interview_date, duration_sec, lens_visibility
		 FROM interviews WHERE id = $1`,
		interviewID,
	).Scan(&iv.ID, &projectID, &iv.AccountID, &title, &iv.InterviewDate, &duration, &visibility)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: interview %s", interviewID)
		}
		return nil, eris.Wrapf(err, "postgres: get interview %s", interviewID)
	}
	iv.ProjectID = deref(projectID)
	iv.Title = deref(title)
	iv.LensVisibility = deref(visibility)
	if duration != nil {
		iv.DurationSec = *duration
	}
	return &iv, nil
}

func (s *PostgresStore) ListParticipants(ctx context.Context, interviewID string) ([]model.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ip.interview_id, ip.person_id, COALESCE(p.name, ''), COALESCE(ip.role, '')
		 FROM interview_people ip LEFT JOIN people p ON p.id = ip.person_id
		 WHERE ip.interview_id = $1 ORDER BY ip.person_id`,
		interviewID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list participants")
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.InterviewID, &p.PersonID, &p.DisplayName, &p.Role); err != nil {
			return nil, eris.Wrap(err, "postgres: scan participant")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list participants iterate")
}

// --- Lens analyses ---

const lensAnalysisColumns = `id, interview_id, template_key, account_id, project_id, analysis_data,
	confidence_score, status, error_message, processed_by, processed_at, updated_at`

func (s *PostgresStore) UpsertLensAnalysis(ctx context.Context, a *model.LensAnalysis) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	data, err := json.Marshal(a.Data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis data")
	}
	a.UpdatedAt = time.Now().UTC()

	err = s.pool.QueryRow(ctx,
		`INSERT INTO conversation_lens_analyses (`+lensAnalysisColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 `+conflictClause(LensAnalysisConflictKey)+` DO UPDATE SET
		 account_id = EXCLUDED.account_id, project_id = EXCLUDED.project_id,
		 analysis_data = EXCLUDED.analysis_data, confidence_score = EXCLUDED.confidence_score,
		 status = EXCLUDED.status, error_message = EXCLUDED.error_message,
		 processed_by = EXCLUDED.processed_by, processed_at = EXCLUDED.processed_at,
		 updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		a.ID, a.InterviewID, a.TemplateKey, a.AccountID, nullable(a.ProjectID), data,
		a.ConfidenceScore, string(a.Status), nullable(a.ErrorMessage), nullable(a.ProcessedBy), a.ProcessedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert lens analysis %s/%s", a.InterviewID, a.TemplateKey)
	}
	return nil
}

func scanLensAnalysis(row pgx.Row) (*model.LensAnalysis, error) {
	var a model.LensAnalysis
	var projectID, errMsg, processedBy *string
	var data []byte
	if err := row.Scan(&a.ID, &a.InterviewID, &a.TemplateKey, &a.AccountID, &projectID, &data,
		&a.ConfidenceScore, &a.Status, &errMsg, &processedBy, &a.ProcessedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ProjectID = deref(projectID)
	a.ErrorMessage = deref(errMsg)
	a.ProcessedBy = deref(processedBy)
	a.Data = model.EmptyAnalysisData()
	if len(data) > 0 {
		if err := json.Unmarshal(data, &a.Data); err != nil {
			return nil, eris.Wrap(err, "unmarshal analysis data")
		}
	}
	return &a, nil
}

func (s *PostgresStore) GetLensAnalysis(ctx context.Context, interviewID, templateKey string) (*model.LensAnalysis, error) {
	a, err := scanLensAnalysis(s.pool.QueryRow(ctx,
		`SELECT `+lensAnalysisColumns+` FROM conversation_lens_analyses WHERE interview_id = $1 AND template_key = $2`,
		interviewID, templateKey,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get lens analysis %s/%s", interviewID, templateKey)
	}
	return a, nil
}

func (s *PostgresStore) ListCompletedLensAnalyses(ctx context.Context, projectID, templateKey string) ([]model.LensAnalysis, error) {
	query := `SELECT ` + lensAnalysisColumns + ` FROM conversation_lens_analyses WHERE project_id = $1 AND status = $2`
	args := []any{projectID, string(model.LensStatusCompleted)}
	if templateKey != "" {
		query += ` AND template_key = $3`
		args = append(args, templateKey)
	}
	query += ` ORDER BY template_key, interview_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list completed lens analyses")
	}
	defer rows.Close()

	var out []model.LensAnalysis
	for rows.Next() {
		a, err := scanLensAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lens analysis")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list completed lens analyses iterate")
}

func (s *PostgresStore) ListSynthesisTargets(ctx context.Context) ([]model.SynthesisTarget, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT project_id, account_id, template_key FROM conversation_lens_analyses
		 WHERE status = $1 AND project_id IS NOT NULL ORDER BY project_id, template_key`,
		string(model.LensStatusCompleted),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list synthesis targets")
	}
	defer rows.Close()

	var out []model.SynthesisTarget
	for rows.Next() {
		var t model.SynthesisTarget
		if err := rows.Scan(&t.ProjectID, &t.AccountID, &t.TemplateKey); err != nil {
			return nil, eris.Wrap(err, "postgres: scan synthesis target")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list synthesis targets iterate")
}

// --- Lens summaries ---

const lensSummaryColumns = `id, project_id, template_key, account_id, status, interview_count, input_fingerprint,
	synthesis_data, executive_summary, key_takeaways, recommendations, conflicts_to_review,
	overall_confidence, custom_instructions, error_message, processed_by, processed_at, updated_at`

func (s *PostgresStore) UpsertLensSummary(ctx context.Context, sum *model.LensSummary) error {
	if sum.ID == "" {
		sum.ID = uuid.New().String()
	}
	takeaways, recs, conflicts, err := marshalSummaryLists(sum)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary lists")
	}
	var synthesis []byte
	if len(sum.SynthesisData) > 0 {
		synthesis = sum.SynthesisData
	}
	sum.UpdatedAt = time.Now().UTC()

	err = s.pool.QueryRow(ctx,
		`INSERT INTO conversation_lens_summaries (`+lensSummaryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 `+conflictClause(LensSummaryConflictKey)+` DO UPDATE SET
		 account_id = EXCLUDED.account_id, status = EXCLUDED.status,
		 interview_count = EXCLUDED.interview_count, input_fingerprint = EXCLUDED.input_fingerprint,
		 synthesis_data = EXCLUDED.synthesis_data, executive_summary = EXCLUDED.executive_summary,
		 key_takeaways = EXCLUDED.key_takeaways, recommendations = EXCLUDED.recommendations,
		 conflicts_to_review = EXCLUDED.conflicts_to_review, overall_confidence = EXCLUDED.overall_confidence,
		 custom_instructions = EXCLUDED.custom_instructions, error_message = EXCLUDED.error_message,
		 processed_by = EXCLUDED.processed_by, processed_at = EXCLUDED.processed_at,
		 updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		sum.ID, sum.ProjectID, sum.TemplateKey, sum.AccountID, string(sum.Status), sum.InterviewCount, nullable(sum.InputFingerprint),
		synthesis, nullable(sum.ExecutiveSummary), takeaways, recs, conflicts,
		sum.OverallConfidence, nullable(sum.CustomInstructions), nullable(sum.ErrorMessage), nullable(sum.ProcessedBy), sum.ProcessedAt, sum.UpdatedAt,
	).Scan(&sum.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert lens summary %s/%s", sum.ProjectID, sum.TemplateKey)
	}
	return nil
}

func scanLensSummary(row pgx.Row) (*model.LensSummary, error) {
	var sum model.LensSummary
	var fingerprint, exec, instr, errMsg, processedBy *string
	var synthesis, takeaways, recs, conflicts []byte
	if err := row.Scan(&sum.ID, &sum.ProjectID, &sum.TemplateKey, &sum.AccountID, &sum.Status, &sum.InterviewCount, &fingerprint,
		&synthesis, &exec, &takeaways, &recs, &conflicts,
		&sum.OverallConfidence, &instr, &errMsg, &processedBy, &sum.ProcessedAt, &sum.UpdatedAt); err != nil {
		return nil, err
	}
	sum.InputFingerprint = deref(fingerprint)
	sum.ExecutiveSummary = deref(exec)
	sum.CustomInstructions = deref(instr)
	sum.ErrorMessage = deref(errMsg)
	sum.ProcessedBy = deref(processedBy)
	if len(synthesis) > 0 {
		sum.SynthesisData = json.RawMessage(synthesis)
	}
	for _, l := range []struct {
		raw []byte
		dst *[]string
	}{{takeaways, &sum.KeyTakeaways}, {recs, &sum.Recommendations}, {conflicts, &sum.ConflictsToReview}} {
		if err := unmarshalStrings(l.raw, l.dst); err != nil {
			return nil, eris.Wrap(err, "unmarshal summary list")
		}
	}
	return &sum, nil
}

func (s *PostgresStore) GetLensSummary(ctx context.Context, projectID, templateKey string) (*model.LensSummary, error) {
	sum, err := scanLensSummary(s.pool.QueryRow(ctx,
		`SELECT `+lensSummaryColumns+` FROM conversation_lens_summaries WHERE project_id = $1 AND template_key = $2`,
		projectID, templateKey,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get lens summary %s/%s", projectID, templateKey)
	}
	return sum, nil
}

func (s *PostgresStore) ListLensSummaries(ctx context.Context, projectID string) ([]model.LensSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+lensSummaryColumns+` FROM conversation_lens_summaries WHERE project_id = $1 ORDER BY template_key`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list lens summaries")
	}
	defer rows.Close()

	var out []model.LensSummary
	for rows.Next() {
		sum, err := scanLensSummary(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lens summary")
		}
		out = append(out, *sum)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list lens summaries iterate")
}

// --- helpers ---

func unmarshalStrings(raw []byte, dst *[]string) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func marshalSummaryLists(sum *model.LensSummary) (takeaways, recs, conflicts []byte, err error) {
	if takeaways, err = json.Marshal(nonNilStrings(sum.KeyTakeaways)); err != nil {
		return nil, nil, nil, err
	}
	if recs, err = json.Marshal(nonNilStrings(sum.Recommendations)); err != nil {
		return nil, nil, nil, err
	}
	if conflicts, err = json.Marshal(nonNilStrings(sum.ConflictsToReview)); err != nil {
		return nil, nil, nil, err
	}
	return takeaways, recs, conflicts, nil
}
