package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/nepjol-importer/internal/clock/system"
	"github.com/JakeFAU/nepjol-importer/internal/status"
)

var statusNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newMockStatusStore(t *testing.T) (*StatusStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewStatusStore(mock, time.Hour, system.Fixed{At: statusNow})
	require.NoError(t, err)
	return store, mock
}

func TestStatusStoreLoadDecodesPayload(t *testing.T) {
	t.Parallel()

	store, mock := newMockStatusStore(t)
	mock.ExpectQuery(`SELECT payload FROM import_status`).
		WithArgs(statusSlot, statusNow).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).
			AddRow([]byte(`{"run_id":"r1","is_running":true,"total_journals":4,"stats":{"errors":2}}`)))

	st, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "r1", st.RunID)
	require.True(t, st.IsRunning)
	require.Equal(t, 4, st.TotalJournals)
	require.Equal(t, 2, st.Stats.Errors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusStoreLoadMissingRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStatusStore(t)
	mock.ExpectQuery(`SELECT payload FROM import_status`).
		WithArgs(statusSlot, statusNow).
		WillReturnError(pgx.ErrNoRows)

	st, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, status.Status{}, st)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusStoreSave(t *testing.T) {
	t.Parallel()

	store, mock := newMockStatusStore(t)
	mock.ExpectExec(`INSERT INTO import_status`).
		WithArgs(statusSlot, pgxmock.AnyArg(), statusNow.Add(time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), status.Status{RunID: "r1"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusStoreSaveIfIdle(t *testing.T) {
	t.Parallel()

	store, mock := newMockStatusStore(t)
	mock.ExpectExec(`WHERE import_status.expires_at <= \$4`).
		WithArgs(statusSlot, pgxmock.AnyArg(), statusNow.Add(time.Hour), statusNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`WHERE import_status.expires_at <= \$4`).
		WithArgs(statusSlot, pgxmock.AnyArg(), statusNow.Add(time.Hour), statusNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	ok, err := store.SaveIfIdle(context.Background(), status.Status{RunID: "r1", IsRunning: true})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.SaveIfIdle(context.Background(), status.Status{RunID: "r2", IsRunning: true})
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
