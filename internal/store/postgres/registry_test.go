package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainerslot/internal/domain"
	"trainerslot/internal/store"
)

var testDay = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func setupMock(t *testing.T, lockTimeout time.Duration) (*Registry, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := Wrap(sqlDB)
	t.Cleanup(func() {
		_ = db.Close()
	})

	return NewRegistry(db, lockTimeout), mock
}

func expectDayLock(mock sqlmock.Sqlmock, day string) *sqlmock.ExpectedExec {
	return mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext('trainer-day:" + day + "'))"))
}

func TestDayLockKeys_DedupesAndSorts(t *testing.T) {
	keys := dayLockKeys([]time.Time{
		testDay.AddDate(0, 0, 1),
		testDay.Add(15 * time.Hour),
		testDay,
	})
	assert.Equal(t, []string{"trainer-day:2024-01-10", "trainer-day:2024-01-11"}, keys)
}

func TestInDayTransaction_LockTimeoutIsBusy(t *testing.T) {
	reg, mock := setupMock(t, 2*time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT set_config('lock_timeout', '2000ms', true)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectDayLock(mock, "2024-01-10").
		WillReturnError(&pgconn.PgError{Code: pgLockNotAvailable, Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	called := false
	err := reg.InDayTransaction(context.Background(), []time.Time{testDay}, func(ctx context.Context, tx store.SessionTx) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrBusy), "err = %v", err)
	assert.False(t, called, "callback must not run without the day lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInDayTransaction_RollsBackOnCallbackError(t *testing.T) {
	reg, mock := setupMock(t, 0)
	sentinel := errors.New("no trainer")

	mock.ExpectBegin()
	expectDayLock(mock, "2024-01-10").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := reg.InDayTransaction(context.Background(), []time.Time{testDay}, func(ctx context.Context, tx store.SessionTx) error {
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBooking_NotFound(t *testing.T) {
	reg, mock := setupMock(t, 0)
	id := uuid.MustParse("00000000-0000-0000-0000-000000000701")

	mock.ExpectBegin()
	expectDayLock(mock, "2024-01-10").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "session_routines"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "bookings"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := reg.InDayTransaction(context.Background(), []time.Time{testDay}, func(ctx context.Context, tx store.SessionTx) error {
		return tx.DeleteBooking(ctx, id)
	})

	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBooking_OverlapConstraintIsConflict(t *testing.T) {
	reg, mock := setupMock(t, 0)

	mock.ExpectBegin()
	expectDayLock(mock, "2024-01-10").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "bookings"`).
		WillReturnError(&pgconn.PgError{Code: pgExclusionViolation, ConstraintName: bookingsNoOverlap})
	mock.ExpectRollback()

	b := domain.Booking{TrainerID: 1, Kind: domain.BookingKindPersonal, OwnerID: "m1"}
	b.SetWindow(domain.NewTimeWindow(testDay, domain.Clock(9, 0), domain.Clock(10, 0)))

	err := reg.InDayTransaction(context.Background(), []time.Time{testDay}, func(ctx context.Context, tx store.SessionTx) error {
		_, err := tx.InsertBooking(ctx, b)
		return err
	})

	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBooking_ReplayedID(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000705")
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		owner   string
		wantErr error
	}{
		{name: "same request returns stored booking", owner: "m1"},
		{name: "different owner is rejected", owner: "m2", wantErr: store.ErrIdempotencyConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, mock := setupMock(t, 0)

			mock.ExpectBegin()
			expectDayLock(mock, "2024-01-10").WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(`INSERT INTO "bookings" .* ON CONFLICT \(id\) DO NOTHING`).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(`SELECT .* FROM "bookings"`).WillReturnRows(
				sqlmock.NewRows([]string{"id", "trainer_id", "session_date", "start_sec", "end_sec", "kind", "owner_id", "created_at", "updated_at"}).
					AddRow(id.String(), int64(1), testDay, int64(9*3600), int64(10*3600), "personal", "m1", now, now),
			)
			if tt.wantErr != nil {
				mock.ExpectRollback()
			} else {
				mock.ExpectCommit()
			}

			b := domain.Booking{ID: id, TrainerID: 1, Kind: domain.BookingKindPersonal, OwnerID: tt.owner}
			b.SetWindow(domain.NewTimeWindow(testDay, domain.Clock(9, 0), domain.Clock(10, 0)))

			var got domain.Booking
			err := reg.InDayTransaction(context.Background(), []time.Time{testDay}, func(ctx context.Context, tx store.SessionTx) error {
				var err error
				got, err = tx.InsertBooking(ctx, b)
				return err
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, id, got.ID)
				assert.True(t, now.Equal(got.CreatedAt))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLoadTrainerBookings_ScansRows(t *testing.T) {
	reg, mock := setupMock(t, 0)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "trainer_id", "session_date", "start_sec", "end_sec", "kind", "owner_id", "created_at", "updated_at"}).
		AddRow("00000000-0000-0000-0000-000000000711", int64(1), testDay, int64(9*3600), int64(10*3600), "personal", "m1", now, now).
		AddRow("00000000-0000-0000-0000-000000000712", int64(1), testDay, int64(13*3600), int64(14*3600), "group", "g1", now, now)
	mock.ExpectQuery(`SELECT .* FROM "bookings"`).WillReturnRows(rows)

	got, err := reg.LoadTrainerBookings(context.Background(), 1, domain.SingleDay(testDay))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, uuid.MustParse("00000000-0000-0000-0000-000000000711"), got[0].ID)
	assert.True(t, got[0].Window().Equal(domain.NewTimeWindow(testDay, domain.Clock(9, 0), domain.Clock(10, 0))))
	assert.Equal(t, domain.BookingKindGroup, got[1].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawGroupSession_NotFound(t *testing.T) {
	reg, mock := setupMock(t, 0)

	mock.ExpectExec(`DELETE FROM "member_group_sessions"`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := reg.WithdrawGroupSession(context.Background(), "m1", uuid.MustParse("00000000-0000-0000-0000-000000000721"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinGroupSession_MapsConstraintErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{name: "missing session", code: pgForeignKeyViolation, want: store.ErrNotFound},
		{name: "already joined", code: pgUniqueViolation, want: store.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, mock := setupMock(t, 0)
			mock.ExpectExec(`INSERT INTO "member_group_sessions"`).WillReturnError(&pgconn.PgError{Code: tt.code})

			err := reg.JoinGroupSession(context.Background(), "m1", uuid.MustParse("00000000-0000-0000-0000-000000000731"))
			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListSessionRoutines(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000741")

	t.Run("owned booking", func(t *testing.T) {
		reg, mock := setupMock(t, 0)
		mock.ExpectQuery(`SELECT EXISTS \(SELECT .* FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(`SELECT .*"routine_id" FROM "session_routines"`).
			WillReturnRows(sqlmock.NewRows([]string{"routine_id"}).AddRow(int64(3)).AddRow(int64(5)))

		got, err := reg.ListSessionRoutines(context.Background(), "m1", id)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 5}, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("someone else's booking", func(t *testing.T) {
		reg, mock := setupMock(t, 0)
		mock.ExpectQuery(`SELECT EXISTS \(SELECT .* FROM "bookings"`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := reg.ListSessionRoutines(context.Background(), "m2", id)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListMemberGroupSessions_FiltersByMembership(t *testing.T) {
	reg, mock := setupMock(t, 0)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "title", "room_id", "trainer_id", "session_date", "start_sec", "end_sec", "created_at"}).
		AddRow("00000000-0000-0000-0000-000000000751", "Spin", int64(3), int64(1), testDay, int64(18*3600), int64(19*3600), now)
	mock.ExpectQuery(`SELECT .* FROM "group_sessions" .*id IN \(SELECT .*"group_session_id" FROM "member_group_sessions"`).
		WillReturnRows(rows)

	got, err := reg.ListMemberGroupSessions(context.Background(), "m1", domain.SingleDay(testDay))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Spin", got[0].Title)
	require.NotNil(t, got[0].TrainerID)
	assert.Equal(t, int64(1), *got[0].TrainerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
