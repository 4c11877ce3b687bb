package postgres

import (
	"context"
	"testing"
	"time"

	"loyalty-ledger/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serialColumns() []string {
	return []string{"id", "benefit_id", "state", "assigned_to", "used_by", "used_at", "created_at"}
}

func TestSerialRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSerialRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM serials WHERE id").
		WithArgs("SER-0001").
		WillReturnRows(pgxmock.NewRows(serialColumns()).
			AddRow("SER-0001", "BEN-01", domain.SerialStateActive, nil, nil, nil, now))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	s, err := repo.GetByID(context.Background(), tx, "SER-0001")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "BEN-01", s.BenefitID)
	assert.Equal(t, domain.SerialStateActive, s.State)
	assert.Nil(t, s.UsedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSerialRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSerialRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM serials WHERE id").
		WithArgs("SER-MISSING").
		WillReturnRows(pgxmock.NewRows(serialColumns()))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	s, err := repo.GetByID(context.Background(), tx, "SER-MISSING")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSerialRepo_MarkUsed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSerialRepo(mock)
	usedAt := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE serials SET state").
		WithArgs(domain.SerialStateUsed, "staff1", usedAt, "SER-0001", domain.SerialStateActive).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.MarkUsed(context.Background(), tx, "SER-0001", "staff1", usedAt)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSerialRepo_MarkUsed_AlreadyTransitioned(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSerialRepo(mock)
	usedAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE serials SET state").
		WithArgs(domain.SerialStateUsed, "staff2", usedAt, "SER-0001", domain.SerialStateActive).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.MarkUsed(context.Background(), tx, "SER-0001", "staff2", usedAt)
	require.NoError(t, err)
	assert.False(t, ok, "update of a non-ACTIVE serial must affect zero rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}
