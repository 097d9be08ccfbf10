// internal/workers/application/create-application-record/handler_test.go
package createapplicationrecord

import (
	"context"
	"errors"
	"testing"
	"time"

	"intake-bot/internal/common/database"
	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testQuestions() models.QuestionSet {
	return models.QuestionSet{
		{Code: "roblox_username", Type: models.QuestionShort, OrderIndex: 1},
		{Code: "timezone", Type: models.QuestionShort, OrderIndex: 2},
		{Code: "motivation", Type: models.QuestionLong, OrderIndex: 3},
	}
}

func newTestHandler(t *testing.T, locker Locker) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewHandler(LoadConfig(), db, locker, testQuestions(), logger.NewTestLogger(t))
	h.now = func() time.Time { return fixedNow }
	return h, mock
}

func newMiniLocker(t *testing.T) (*database.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return database.NewLocker(rdb, "intake:submit:"), mr
}

type failingLocker struct{}

func (failingLocker) Acquire(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingLocker) Release(context.Context, string, string) (bool, error) { return false, nil }

func TestHandler_CheckCooldown(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(mock sqlmock.Sqlmock)
		wantCode apperrors.ErrorCode
	}{
		{
			name: "no applicant row",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT cooldown_until FROM applicants").
					WithArgs(int64(1001)).
					WillReturnRows(sqlmock.NewRows([]string{"cooldown_until"}))
			},
		},
		{
			name: "null cooldown",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT cooldown_until FROM applicants").
					WithArgs(int64(1001)).
					WillReturnRows(sqlmock.NewRows([]string{"cooldown_until"}).AddRow(nil))
			},
		},
		{
			name: "expired cooldown",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT cooldown_until FROM applicants").
					WithArgs(int64(1001)).
					WillReturnRows(sqlmock.NewRows([]string{"cooldown_until"}).AddRow(fixedNow.Add(-time.Minute)))
			},
		},
		{
			name: "active cooldown",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT cooldown_until FROM applicants").
					WithArgs(int64(1001)).
					WillReturnRows(sqlmock.NewRows([]string{"cooldown_until"}).AddRow(fixedNow.Add(3 * time.Hour)))
			},
			wantCode: apperrors.ErrCodeCooldownActive,
		},
		{
			name: "query failure",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT cooldown_until FROM applicants").
					WithArgs(int64(1001)).
					WillReturnError(errors.New("db down"))
			},
			wantCode: apperrors.ErrCodePersistenceFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mock := newTestHandler(t, nil)
			tt.setup(mock)

			err := h.CheckCooldown(context.Background(), "1001")
			if tt.wantCode == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, apperrors.IsCode(err, tt.wantCode))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHandler_CheckCooldown_ReportsRemaining(t *testing.T) {
	h, mock := newTestHandler(t, nil)
	mock.ExpectQuery("SELECT cooldown_until FROM applicants").
		WillReturnRows(sqlmock.NewRows([]string{"cooldown_until"}).AddRow(fixedNow.Add(90 * time.Minute)))

	err := h.CheckCooldown(context.Background(), "1001")
	remaining, ok := apperrors.CooldownRemaining(err)
	require.True(t, ok)
	assert.Equal(t, 90*time.Minute, remaining)
}

func TestHandler_CheckEligible_OpenRun(t *testing.T) {
	h, mock := newTestHandler(t, nil)
	mock.ExpectQuery("SELECT cooldown_until FROM applicants").
		WillReturnRows(sqlmock.NewRows([]string{"cooldown_until"}))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(1001)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := h.CheckEligible(context.Background(), "1001")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDuplicateSubmission))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_EnsureApplicantRowAndTouch(t *testing.T) {
	h, mock := newTestHandler(t, nil)
	mock.ExpectExec("ON CONFLICT \\(discord_id\\) DO UPDATE SET status = 'in_progress'").
		WithArgs(int64(1001)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("ON CONFLICT \\(discord_id\\) DO UPDATE SET last_active = now\\(\\)").
		WithArgs(int64(1001)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, h.EnsureApplicantRow(context.Background(), "1001"))
	require.NoError(t, h.Touch(context.Background(), "1001"))
	assert.NoError(t, mock.ExpectationsWereMet())

	err := h.Touch(context.Background(), "not-a-snowflake")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePersistenceFailure))
}

func TestHandler_Submit_WritesRunAndAnswersInOrder(t *testing.T) {
	locker, mr := newMiniLocker(t)
	h, mock := newTestHandler(t, locker)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO applicants").
		WithArgs(int64(1001), "RaeFan99").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO application_runs").
		WithArgs(int64(7), fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(31))
	mock.ExpectExec("INSERT INTO answers").
		WithArgs(int64(31), "roblox_username", "RaeFan99", fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO answers").
		WithArgs(int64(31), "timezone", "UTC+1", fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO answers").
		WithArgs(int64(31), "motivation", "I want to help run medical trainings.", fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	out, err := h.Submit(context.Background(), "1001", "RaeFan99", models.Answers{
		"motivation":      "I want to help run medical trainings.",
		"roblox_username": "RaeFan99",
		"timezone":        "UTC+1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.ApplicantID)
	assert.Equal(t, int64(31), out.RunID)
	assert.Equal(t, fixedNow, out.SubmittedAt)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.False(t, mr.Exists("intake:submit:1001"), "lock released after submit")
}

func TestHandler_Submit_RollsBackOnAnswerFailure(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO applicants").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO application_runs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(31))
	mock.ExpectExec("INSERT INTO answers").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := h.Submit(context.Background(), "1001", "", models.Answers{"roblox_username": "RaeFan99"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePersistenceFailure))
	assert.ErrorIs(t, err, ErrDatabaseInsertFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Submit_OpenRunIsDuplicate(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO applicants").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := h.Submit(context.Background(), "1001", "RaeFan99", models.Answers{"roblox_username": "RaeFan99"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDuplicateSubmission))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Submit_LockHeldIsDuplicate(t *testing.T) {
	locker, _ := newMiniLocker(t)
	h, mock := newTestHandler(t, locker)

	ok, err := locker.Acquire(context.Background(), "1001", "other-session", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.Submit(context.Background(), "1001", "RaeFan99", models.Answers{"roblox_username": "RaeFan99"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDuplicateSubmission))
	assert.NoError(t, mock.ExpectationsWereMet(), "no SQL issued while another submit holds the lock")
}

func TestHandler_Submit_LockErrorFallsBackToRowChecks(t *testing.T) {
	h, mock := newTestHandler(t, failingLocker{})

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO applicants").
		WithArgs(int64(1001), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO application_runs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(32))
	mock.ExpectCommit()

	out, err := h.Submit(context.Background(), "1001", "", models.Answers{})
	require.NoError(t, err)
	assert.Equal(t, int64(32), out.RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Submit_UnknownQuestionCode(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	_, err := h.Execute(context.Background(), &Input{
		DiscordID: "1001",
		Answers:   models.Answers{"favourite_colour": "teal"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownQuestion)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePersistenceFailure))
	assert.NoError(t, mock.ExpectationsWereMet())
}
