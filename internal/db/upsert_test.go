package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertSQL_Dollar(t *testing.T) {
	got, err := UpsertSQL(UpsertConfig{
		Table:        "case_outcomes",
		Columns:      []string{"run_id", "idx", "state"},
		ConflictKeys: []string{"run_id", "idx"},
	}, Dollar)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "case_outcomes" ("run_id", "idx", "state") VALUES ($1, $2, $3) `+
			`ON CONFLICT ("run_id", "idx") DO UPDATE SET "state" = EXCLUDED."state"`,
		got)
}

func TestUpsertSQL_QuestionAndExplicitUpdate(t *testing.T) {
	got, err := UpsertSQL(UpsertConfig{
		Table:        "main.runs",
		Columns:      []string{"id", "status", "court"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"status"},
	}, Question)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "main"."runs" ("id", "status", "court") VALUES (?, ?, ?) `+
			`ON CONFLICT ("id") DO UPDATE SET "status" = EXCLUDED."status"`,
		got)
}

func TestUpsertSQL_OnlyKeysDoesNothing(t *testing.T) {
	got, err := UpsertSQL(UpsertConfig{
		Table:        "t",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, Dollar)
	require.NoError(t, err)
	assert.Contains(t, got, "DO NOTHING")
}

func TestUpsertSQL_NoColumns(t *testing.T) {
	_, err := UpsertSQL(UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, Dollar)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestUpsertSQL_NoConflictKeys(t *testing.T) {
	_, err := UpsertSQL(UpsertConfig{Table: "t", Columns: []string{"id"}}, Dollar)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.runs", `"public"."runs"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}
