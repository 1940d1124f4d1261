package job_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezgisubasi/leadership-coach-llm/features/job"
)

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := job.NewPostgresRepo(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO failed_jobs (topic, payload, error, retries) VALUES ($1, $2, $3, $4) RETURNING id, created_at")).
		WithArgs("index.rebuild", []byte(`{}`), "boom", 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("uuid-1", now))

	j := &job.Job{Topic: "index.rebuild", Payload: []byte(`{}`), Error: "boom"}
	require.NoError(t, repo.Save(context.Background(), j))
	assert.Equal(t, "uuid-1", j.ID)
	assert.Equal(t, now, j.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := job.NewPostgresRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "topic", "payload", "error", "retries", "created_at"}).
		AddRow("2", "index.rebuild", []byte(`{"batch_size": 4}`), "e2", 0, now).
		AddRow("1", "index.rebuild", []byte(`{}`), "e1", 1, now.Add(-time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, topic, payload, error, retries, created_at FROM failed_jobs ORDER BY created_at DESC")).
		WillReturnRows(rows)

	jobs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "2", jobs[0].ID)
	assert.JSONEq(t, `{"batch_size": 4}`, string(jobs[0].Payload))
	assert.Equal(t, 1, jobs[1].Retries)
}

func TestPostgresRepo_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := job.NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM failed_jobs WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPostgresRepo_DeleteAndCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := job.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM failed_jobs WHERE id = $1")).
		WithArgs("1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM failed_jobs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	require.NoError(t, repo.Delete(context.Background(), "1"))
	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
