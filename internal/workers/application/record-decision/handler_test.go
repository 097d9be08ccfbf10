// internal/workers/application/record-decision/handler_test.go
package recorddecision

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"intake-bot/internal/common/config"
	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewHandler(LoadConfig(), db, logger.NewTestLogger(t))
	h.now = func() time.Time { return fixedNow }
	return h, mock
}

func TestHandler_Record_StatusAndCooldown(t *testing.T) {
	until := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name       string
		decision   models.DecisionKind
		reason     string
		wantStatus models.ApplicantStatus
		cooldown   interface{}
	}{
		{name: "accept", decision: models.DecisionAccept, reason: "Auto-accepted by AI threshold", wantStatus: models.ApplicantAccepted, cooldown: until},
		{name: "reject", decision: models.DecisionReject, reason: "Answers were off-topic.", wantStatus: models.ApplicantRejected, cooldown: until},
		{name: "borderline clears cooldown", decision: models.DecisionBorderline, reason: "Below auto-accept threshold but above minimum", wantStatus: models.ApplicantSubmitted, cooldown: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mock := newTestHandler(t)

			mock.ExpectBegin()
			mock.ExpectQuery("INSERT INTO decisions").
				WithArgs(int64(31), "ai", string(tt.decision), tt.reason, fixedNow).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
			mock.ExpectExec("UPDATE applicants SET status").
				WithArgs(string(tt.wantStatus), tt.cooldown, int64(1001)).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			out, err := h.Record(context.Background(), 31, "1001", tt.decision, tt.reason)
			require.NoError(t, err)
			assert.Equal(t, int64(5), out.DecisionID)
			assert.Equal(t, tt.wantStatus, out.Status)
			if tt.cooldown == nil {
				assert.Nil(t, out.CooldownUntil)
			} else {
				require.NotNil(t, out.CooldownUntil)
				assert.Equal(t, until, *out.CooldownUntil)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHandler_Record_CustomCooldownAndStaffDecider(t *testing.T) {
	h, mock := newTestHandler(t)
	h.config.Cooldown = 48 * time.Hour

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO decisions").
		WithArgs(int64(31), "staff:42", "reject", "Manual review", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
	mock.ExpectExec("UPDATE applicants SET status").
		WithArgs("rejected", fixedNow.Add(48*time.Hour), int64(1001)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := h.Execute(context.Background(), &Input{
		RunID:     31,
		DiscordID: "1001",
		DecidedBy: models.DecidedByStaff("42"),
		Decision:  models.DecisionReject,
		Reason:    "Manual review",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFromApplication_Cooldown(t *testing.T) {
	assert.Equal(t, 72*time.Hour, FromApplication(config.ApplicationConfig{CooldownHours: 72}).Cooldown)

	c := FromApplication(config.ApplicationConfig{CooldownHours: 0})
	assert.Equal(t, time.Duration(0), c.Cooldown)
	assert.Equal(t, 10*time.Second, c.Timeout)
}

func TestHandler_Record_Failures(t *testing.T) {
	t.Run("insert fails", func(t *testing.T) {
		h, mock := newTestHandler(t)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO decisions").WillReturnError(errors.New("db down"))
		mock.ExpectRollback()

		_, err := h.Record(context.Background(), 31, "1001", models.DecisionAccept, "x")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePersistenceFailure))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status update rolls back the decision", func(t *testing.T) {
		h, mock := newTestHandler(t)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO decisions").
			WithArgs(int64(31), "ai", "reject", "x", fixedNow).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
		mock.ExpectExec("UPDATE applicants SET status").WillReturnError(errors.New("lock timeout"))
		mock.ExpectRollback()

		out, err := h.Record(context.Background(), 31, "1001", models.DecisionReject, "x")
		assert.Nil(t, out)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePersistenceFailure))
		assert.ErrorContains(t, err, "update applicant")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown decision", func(t *testing.T) {
		h, mock := newTestHandler(t)
		_, err := h.Record(context.Background(), 31, "1001", models.DecisionKind("defer"), "x")
		assert.ErrorIs(t, err, ErrUnknownDecision)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("bad discord id", func(t *testing.T) {
		h, _ := newTestHandler(t)
		_, err := h.Record(context.Background(), 31, "abc", models.DecisionAccept, "x")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePersistenceFailure))
	})
}

func TestHandler_RecordReview(t *testing.T) {
	h, mock := newTestHandler(t)
	v := &models.Verdict{OverallScore: 60, Verdict: "accept", Rationale: "Clear.", Model: "gpt-4o-mini", TokensIn: 420, TokensOut: 64}

	mock.ExpectQuery("INSERT INTO ai_reviews").
		WithArgs(int64(31), "gpt-4o-mini", 60.0, "accept", "Clear.", 420, 64).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	id, err := h.RecordReview(context.Background(), 31, v)
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	mock.ExpectQuery("INSERT INTO ai_reviews").WillReturnError(sql.ErrConnDone)
	_, err = h.RecordReview(context.Background(), 31, v)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePersistenceFailure))
	assert.NoError(t, mock.ExpectationsWereMet())
}
