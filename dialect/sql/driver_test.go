package sql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeworks/fitting/dialect"
)

// TestOpenDB tests the OpenDB function with different dialects.
func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
	}{
		{"Postgres", dialect.Postgres},
		{"MySQL", dialect.MySQL},
		{"SQLite", dialect.SQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.dialect, db)
			assert.Equal(t, tt.dialect, drv.Dialect())
			assert.Same(t, db, drv.DB())
		})
	}
}

// TestDialectPrefix verifies dialect detection for instrumented driver names.
func TestDialectPrefix(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB("sqlite-instrumented", db)
	assert.Equal(t, dialect.SQLite, drv.Dialect())
}

func TestConnExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.SQLite, db)

	mock.ExpectExec("INSERT INTO fittings").
		WillReturnResult(sqlmock.NewResult(3, 1))
	var res Result
	err = drv.Exec(context.Background(), "INSERT INTO fittings DEFAULT VALUES", []any{}, &res)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	// Discarded result.
	mock.ExpectExec("DELETE FROM fittings").
		WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, drv.Exec(context.Background(), "DELETE FROM fittings", []any{}, nil))

	// Invalid args and destination types surface immediately.
	assert.Error(t, drv.Exec(context.Background(), "DELETE FROM fittings", "bad", nil))
	assert.Error(t, drv.Exec(context.Background(), "DELETE FROM fittings", []any{}, "bad"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.SQLite, db)

	mock.ExpectQuery("SELECT id FROM fittings").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT id FROM fittings", []any{}, rows))
	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []int64{1, 2}, ids)

	assert.Error(t, drv.Query(context.Background(), "SELECT 1", []any{}, nil))
	assert.Error(t, drv.Query(context.Background(), "SELECT 1", "bad", rows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO fittings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), "INSERT INTO fittings DEFAULT VALUES", []any{}, nil))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx, err = drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}
