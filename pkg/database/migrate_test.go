package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func migrationFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func expectTrackingTable(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
}

func expectApplied(mock pgxmock.PgxPoolIface, version, statementPattern string) {
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(version).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(statementPattern).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(version).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
}

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	fsys := migrationFS(map[string]string{
		"000002_images.up.sql":     "CREATE TABLE product_images (id UUID PRIMARY KEY)",
		"000001_products.up.sql":   "CREATE TABLE products (id UUID PRIMARY KEY)",
		"000001_products.down.sql": "DROP TABLE products",
		"README.md":                "not a migration",
	})

	// Expectations are ordered, so this also verifies 000001 runs before 000002
	// and that down scripts and stray files are ignored.
	expectTrackingTable(mock)
	expectApplied(mock, "000001_products.up.sql", "CREATE TABLE products")
	expectApplied(mock, "000002_images.up.sql", "CREATE TABLE product_images")

	err = RunMigrations(context.Background(), mock, fsys, discardLogger())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SkipsAlreadyApplied(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	fsys := migrationFS(map[string]string{
		"000001_products.up.sql": "CREATE TABLE products (id UUID PRIMARY KEY)",
	})

	expectTrackingTable(mock)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("000001_products.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err = RunMigrations(context.Background(), mock, fsys, discardLogger())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBack(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	fsys := migrationFS(map[string]string{
		"000001_products.up.sql": "CREATE TABLE products (",
	})

	expectTrackingTable(mock)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("000001_products.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE products").
		WillReturnError(errors.New("syntax error at end of input"))
	mock.ExpectRollback()

	// A SQL error is not retried; it surfaces on the first attempt.
	err = RunMigrations(context.Background(), mock, fsys, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 000001_products.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_RecordFailureRollsBack(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	fsys := migrationFS(map[string]string{
		"000001_products.up.sql": "CREATE TABLE products (id UUID PRIMARY KEY)",
	})

	expectTrackingTable(mock)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("000001_products.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE products").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("000001_products.up.sql").
		WillReturnError(errors.New("duplicate key value violates unique constraint"))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, fsys, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record migration")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_EmptyFS(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	expectTrackingTable(mock)

	err = RunMigrations(context.Background(), mock, fstest.MapFS{}, discardLogger())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
