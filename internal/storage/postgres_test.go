package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newschannel/internal/logger"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresFromDB(sqlx.NewDb(db, "postgres"), logger.Discard()), mock
}

func TestPostgresActiveSources(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery("SELECT id, link, is_active FROM sources WHERE is_active = TRUE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "link", "is_active"}).
			AddRow(1, "https://a.example/", true).
			AddRow(2, "https://b.example/", true))

	got, err := p.ActiveSources(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://b.example/", got[1].Link)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddSourceReactivates(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery("INSERT INTO sources").
		WithArgs("https://a.example/").
		WillReturnRows(sqlmock.NewRows([]string{"id", "link", "is_active"}).AddRow(7, "https://a.example/", true))

	s, err := p.AddSource(context.Background(), "  https://a.example/ ")
	require.NoError(t, err)
	assert.Equal(t, int64(7), s.ID)
	assert.True(t, s.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDisableSourceNotFound(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectExec("UPDATE sources SET is_active = FALSE WHERE id").
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := p.DisableSource(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDisableSourceByLink(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectExec("UPDATE sources SET is_active = FALSE WHERE link").
		WithArgs("https://a.example/").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.DisableSourceByLink(context.Background(), "https://a.example/"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdmins(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery("INSERT INTO admins").
		WithArgs("42", "Ann").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "is_active"}).AddRow(1, "42", "Ann", true))
	mock.ExpectQuery("SELECT id, user_id, name, is_active FROM admins").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "is_active"}).AddRow(1, "42", "Ann", true))

	a, err := p.AddAdmin(context.Background(), "42", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "42", a.UserID)

	admins, err := p.ActiveAdmins(context.Background())
	require.NoError(t, err)
	assert.Len(t, admins, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
