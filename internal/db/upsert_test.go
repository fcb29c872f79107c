package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linkCfg = UpsertConfig{
	Table:        "project_answer_evidence",
	Columns:      []string{"project_id", "answer_id", "evidence_id", "payload"},
	ConflictKeys: []string{"project_id", "answer_id", "evidence_id"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, linkCfg, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "t",
		ConflictKeys: []string{"id"},
	}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "t",
		Columns: []string{"id", "name"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_ConflictKeyNotInColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "t",
		Columns:      []string{"id", "name"},
		ConflictKeys: []string{"other"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `conflict key "other"`)
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_project_answer_evidence"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_project_answer_evidence"}, linkCfg.Columns).
		WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT \("project_id", "answer_id", "evidence_id"\) DO UPDATE SET "payload" = EXCLUDED."payload"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"p", "a1", "e1", "{}"}, {"p", "a1", "e2", "{}"}}
	n, err := BulkUpsert(context.Background(), mock, linkCfg, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_project_answer_evidence"}, linkCfg.Columns).
		WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, linkCfg, [][]any{{"p", "a", "e", "{}"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for project_answer_evidence")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL(t *testing.T) {
	t.Parallel()

	got := upsertSQL(linkCfg)
	assert.Equal(t,
		`INSERT INTO "project_answer_evidence" ("project_id", "answer_id", "evidence_id", "payload") `+
			`SELECT "project_id", "answer_id", "evidence_id", "payload" FROM "_tmp_upsert_project_answer_evidence" `+
			`ON CONFLICT ("project_id", "answer_id", "evidence_id") DO UPDATE SET "payload" = EXCLUDED."payload"`,
		got)
}

func TestUpsertSQL_KeysOnlyDoesNothing(t *testing.T) {
	t.Parallel()

	got := upsertSQL(UpsertConfig{
		Table:        "s.t",
		Columns:      []string{"a", "b"},
		ConflictKeys: []string{"a", "b"},
	})
	assert.Contains(t, got, `INSERT INTO "s"."t"`)
	assert.Contains(t, got, `FROM "_tmp_upsert_s_t"`)
	assert.Contains(t, got, "ON CONFLICT (\"a\", \"b\") DO NOTHING")
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"evidence", `"evidence"`},
		{"public.evidence", `"public"."evidence"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
