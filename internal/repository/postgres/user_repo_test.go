package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/analysis-keeper/internal/errs"
	"github.com/and161185/analysis-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var userCols = []string{"id", "email", "name", "pwd_hash", "created_at"}

const saveUserSQL = `INSERT INTO users \(id, email, name, pwd_hash\) VALUES \(\$1, \$2, \$3, \$4\) ON CONFLICT \(id\) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name, pwd_hash = EXCLUDED.pwd_hash RETURNING created_at`

func TestUserRepo_Save_AssignsIDOnFirstSave(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(saveUserSQL).
		WithArgs(pgxmock.AnyArg(), "a@b.c", "Alice", "digest").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

	u, err := r.Save(ctx, &model.User{Email: "a@b.c", Name: "Alice", PwdHash: "digest"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, u.ID)
	require.Equal(t, now, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Save_KeepsExistingIDAndMapsUniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(saveUserSQL).
		WithArgs(id, "a@b.c", "Renamed", "digest").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	u, err := r.Save(ctx, &model.User{ID: id, Email: "a@b.c", Name: "Renamed", PwdHash: "digest"})
	require.NoError(t, err)
	require.Equal(t, id, u.ID)

	mock.ExpectQuery(saveUserSQL).
		WithArgs(pgxmock.AnyArg(), "dup@b.c", "Dup", "digest").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = r.Save(ctx, &model.User{Email: "dup@b.c", Name: "Dup", PwdHash: "digest"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestUserRepo_ExistsByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM users WHERE email=\$1\)`).
		WithArgs("a@b.c").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := r.ExistsByEmail(context.Background(), "a@b.c")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, email, name, pwd_hash, created_at FROM users WHERE email=\$1`).
		WithArgs("a@b.c").
		WillReturnRows(pgxmock.NewRows(userCols).AddRow(id, "a@b.c", "Alice", "digest", time.Now()))
	u, err := r.GetByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, "Alice", u.Name)

	mock.ExpectQuery(`SELECT id, email, name, pwd_hash, created_at FROM users WHERE email=\$1`).
		WithArgs("none@b.c").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByEmail(ctx, "none@b.c")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, email, name, pwd_hash, created_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(userCols).AddRow(id, "a@b.c", "Alice", "digest", time.Now()))
	u, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "a@b.c", u.Email)

	mock.ExpectQuery(`SELECT id, email, name, pwd_hash, created_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
