package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	reserveSQL = `UPDATE products SET stock = stock - $1, updated_at = $2 WHERE id = $3 AND stock >= $4`
	releaseSQL = `UPDATE products SET stock = stock + $1, updated_at = $2 WHERE id = $3`
)

func newMockLedger(t *testing.T) (StockLedger, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return NewStockLedger(db), mock
}

func TestStockLedger_ReserveIsSingleConditionalUpdate(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectExec(regexp.QuoteMeta(reserveSQL)).
		WithArgs(2, sqlmock.AnyArg(), "p1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ledger.Reserve(context.Background(), "p1", 2))
	// 成功路径不应有任何先读
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockLedger_ReserveInsufficient(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectExec(regexp.QuoteMeta(reserveSQL)).
		WithArgs(3, sqlmock.AnyArg(), "p1", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "stock"}).AddRow("p1", 1))

	err := ledger.Reserve(context.Background(), "p1", 3)
	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, 1, ise.Available)
	assert.Equal(t, 3, ise.Requested)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockLedger_ReserveUnknownProduct(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectExec(regexp.QuoteMeta(reserveSQL)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "stock"}))

	err := ledger.Reserve(context.Background(), "ghost", 1)
	var pnf *ProductNotFoundError
	require.True(t, errors.As(err, &pnf))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStockLedger_Release(t *testing.T) {
	ledger, mock := newMockLedger(t)

	mock.ExpectExec(regexp.QuoteMeta(releaseSQL)).
		WithArgs(4, sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(releaseSQL)).
		WithArgs(1, sqlmock.AnyArg(), "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, ledger.Release(context.Background(), "p1", 4))
	assert.True(t, errors.Is(ledger.Release(context.Background(), "gone", 1), ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
