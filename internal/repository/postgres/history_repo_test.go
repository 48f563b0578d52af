package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/analysis-keeper/internal/errs"
	"github.com/and161185/analysis-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var historyCols = []string{"id", "user_id", "file_name", "file_id", "summary", "thumbnail_path", "result_data", "created_at"}

func strPtr(s string) *string { return &s }

func TestHistoryRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)
	userID := uuid.Must(uuid.NewV4())
	now := time.Now()

	rec := &model.AnalysisRecord{
		UserID:     userID,
		FileName:   "data.csv",
		FileID:     strPtr("f-1"),
		ResultData: `{"file_id":"f-1"}`,
	}
	mock.ExpectQuery(`INSERT INTO analysis_history \(user_id, file_name, file_id, summary, thumbnail_path, result_data\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\) RETURNING id, created_at`).
		WithArgs(userID, "data.csv", rec.FileID, rec.Summary, rec.ThumbnailPath, []byte(rec.ResultData)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now))

	got, err := r.Create(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, int64(42), got.ID)
	require.Equal(t, now, got.CreatedAt)
	require.Zero(t, rec.ID, "input must not be mutated")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepo_Create_KeepsNonUTF8BodyVerbatim(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)
	userID := uuid.Must(uuid.NewV4())
	body := "\xff\x00not json\xfe"

	mock.ExpectQuery(`INSERT INTO analysis_history`).
		WithArgs(userID, "bin.dat", (*string)(nil), (*string)(nil), (*string)(nil), []byte(body)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), time.Now()))
	got, err := r.Create(context.Background(), &model.AnalysisRecord{UserID: userID, FileName: "bin.dat", ResultData: body})
	require.NoError(t, err)
	require.Equal(t, int64(3), got.ID)

	mock.ExpectQuery(`FROM analysis_history WHERE id=\$1`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(historyCols).
			AddRow(int64(3), userID, "bin.dat", (*string)(nil), (*string)(nil), (*string)(nil), []byte(body), time.Now()))
	rec, err := r.GetByID(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, body, rec.ResultData)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepo_Create_Error(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)

	mock.ExpectQuery(`INSERT INTO analysis_history`).
		WillReturnError(errors.New("db down"))
	_, err := r.Create(context.Background(), &model.AnalysisRecord{UserID: uuid.Must(uuid.NewV4()), FileName: "x"})
	require.Error(t, err)
}

func TestHistoryRepo_ListByUser_OrderedNewestFirst(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)
	userID := uuid.Must(uuid.NewV4())
	t2 := time.Now()
	t1 := t2.Add(-time.Minute)

	mock.ExpectQuery(`SELECT id, user_id, file_name, file_id, summary, thumbnail_path, result_data, created_at FROM analysis_history WHERE user_id=\$1 ORDER BY created_at DESC, id DESC`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(historyCols).
			AddRow(int64(2), userID, "b.csv", strPtr("f-2"), strPtr("s"), (*string)(nil), []byte("{}"), t2).
			AddRow(int64(1), userID, "a.csv", (*string)(nil), (*string)(nil), (*string)(nil), []byte("oops"), t1))

	list, err := r.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, int64(2), list[0].ID)
	require.Equal(t, "f-2", *list[0].FileID)
	require.Nil(t, list[1].FileID)
	require.Equal(t, "oops", list[1].ResultData)
}

func TestHistoryRepo_ListByUser_EmptyIsNotNil(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)
	userID := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`FROM analysis_history WHERE user_id=\$1`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(historyCols))
	list, err := r.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)
}

func TestHistoryRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)
	userID := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, user_id, file_name, file_id, summary, thumbnail_path, result_data, created_at FROM analysis_history WHERE id=\$1`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(historyCols).
			AddRow(int64(7), userID, "a.csv", strPtr("f"), strPtr("s"), strPtr("http://t/1.png"), []byte("{}"), time.Now()))
	rec, err := r.GetByID(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, userID, rec.UserID)
	require.Equal(t, "http://t/1.png", *rec.ThumbnailPath)

	mock.ExpectQuery(`FROM analysis_history WHERE id=\$1`).
		WithArgs(int64(8)).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(context.Background(), 8)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
