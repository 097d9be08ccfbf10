package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"intake-bot/internal/models"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS applicants (
		id BIGSERIAL PRIMARY KEY,
		discord_id BIGINT UNIQUE NOT NULL,
		roblox_username TEXT,
		roblox_user_id BIGINT,
		status TEXT NOT NULL DEFAULT 'in_progress',
		created_at TIMESTAMPTZ DEFAULT now(),
		updated_at TIMESTAMPTZ DEFAULT now(),
		last_active TIMESTAMPTZ DEFAULT now(),
		cooldown_until TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS application_runs (
		id BIGSERIAL PRIMARY KEY,
		applicant_id BIGINT REFERENCES applicants(id) ON DELETE CASCADE,
		started_at TIMESTAMPTZ DEFAULT now(),
		submitted_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id SERIAL PRIMARY KEY,
		code TEXT UNIQUE NOT NULL,
		prompt TEXT NOT NULL,
		type TEXT NOT NULL,
		order_index INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS answers (
		id BIGSERIAL PRIMARY KEY,
		run_id BIGINT REFERENCES application_runs(id) ON DELETE CASCADE,
		question_code TEXT NOT NULL,
		answer_text TEXT,
		created_at TIMESTAMPTZ DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ai_reviews (
		id BIGSERIAL PRIMARY KEY,
		run_id BIGINT REFERENCES application_runs(id) ON DELETE CASCADE,
		model TEXT NOT NULL,
		score NUMERIC(5,2),
		verdict TEXT,
		rationale TEXT,
		tokens_in INT,
		tokens_out INT,
		created_at TIMESTAMPTZ DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS decisions (
		id BIGSERIAL PRIMARY KEY,
		run_id BIGINT REFERENCES application_runs(id) ON DELETE CASCADE,
		decided_by TEXT NOT NULL,
		decision TEXT NOT NULL,
		reason TEXT,
		created_at TIMESTAMPTZ DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS roblox_verification (
		discord_id BIGINT PRIMARY KEY,
		roblox_id BIGINT UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS member_ranks (
		discord_id BIGINT PRIMARY KEY,
		rank TEXT NOT NULL,
		set_by BIGINT,
		set_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

const seedQuestionSQL = `
	INSERT INTO questions (code, prompt, type, order_index)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (code) DO UPDATE SET prompt = EXCLUDED.prompt, type = EXCLUDED.type, order_index = EXCLUDED.order_index`

// EnsureSchema creates the tables and refreshes the question rows.
func EnsureSchema(ctx context.Context, db *sql.DB, questions models.QuestionSet) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	for idx, q := range questions {
		if _, err := db.ExecContext(ctx, seedQuestionSQL, q.Code, q.Prompt, string(q.Type), idx); err != nil {
			return fmt.Errorf("seed question %s: %w", q.Code, err)
		}
	}
	return nil
}

// Bootstrapper runs a setup function at most once per process.
// A failed attempt may be retried.
type Bootstrapper struct {
	mu   sync.Mutex
	done bool
	fn   func(ctx context.Context) error
}

func NewBootstrapper(fn func(ctx context.Context) error) *Bootstrapper {
	return &Bootstrapper{fn: fn}
}

func (b *Bootstrapper) Ensure(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return nil
	}
	if err := b.fn(ctx); err != nil {
		return err
	}
	b.done = true
	return nil
}

func (b *Bootstrapper) Done() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}
