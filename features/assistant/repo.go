package assistant

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ezgisubasi/leadership-coach-llm/internal/answer"
)

// ProfileRepository persists named assistant configurations. At most one
// profile is active.
type ProfileRepository interface {
	List(ctx context.Context) ([]answer.Configuration, error)
	Get(ctx context.Context, name string) (*answer.Configuration, error)
	Save(ctx context.Context, cfg *answer.Configuration) error
	Activate(ctx context.Context, name string) error
	Active(ctx context.Context) (*answer.Configuration, error)
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const profileColumns = `name, description, system_prompt, language, example_questions, playlist_url`

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*answer.Configuration, error) {
	c := &answer.Configuration{}
	var questions pq.StringArray
	if err := row.Scan(&c.Name, &c.Description, &c.SystemPrompt, &c.Language, &questions, &c.PlaylistURL); err != nil {
		return nil, err
	}
	c.ExampleQuestions = []string(questions)
	return c, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]answer.Configuration, error) {
	query := `SELECT ` + profileColumns + ` FROM assistant_profiles ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []answer.Configuration
	for rows.Next() {
		c, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, name string) (*answer.Configuration, error) {
	query := `SELECT ` + profileColumns + ` FROM assistant_profiles WHERE name = $1`
	return scanProfile(r.db.QueryRowContext(ctx, query, name))
}

func (r *PostgresRepo) Save(ctx context.Context, c *answer.Configuration) error {
	query := `
		INSERT INTO assistant_profiles (name, description, system_prompt, language, example_questions, playlist_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE
		SET description = EXCLUDED.description, system_prompt = EXCLUDED.system_prompt, language = EXCLUDED.language,
			example_questions = EXCLUDED.example_questions, playlist_url = EXCLUDED.playlist_url, updated_at = NOW()
	`
	questions := c.ExampleQuestions
	if questions == nil {
		questions = []string{}
	}
	_, err := r.db.ExecContext(ctx, query, c.Name, c.Description, c.SystemPrompt, c.Language, pq.Array(questions), c.PlaylistURL)
	return err
}

func (r *PostgresRepo) Activate(ctx context.Context, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE assistant_profiles SET active = FALSE WHERE active`); err != nil {
		return fmt.Errorf("clear active profile: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE assistant_profiles SET active = TRUE, updated_at = NOW() WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("activate profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

func (r *PostgresRepo) Active(ctx context.Context) (*answer.Configuration, error) {
	query := `SELECT ` + profileColumns + ` FROM assistant_profiles WHERE active LIMIT 1`
	return scanProfile(r.db.QueryRowContext(ctx, query))
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assistant_profiles`).Scan(&count)
	return count, err
}
