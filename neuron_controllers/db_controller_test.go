package neuron_controllers

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDatabaseController(t *testing.T) (*DatabaseController, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	dbController, err := NewDatabaseControllerFromDB(db, "", nil)
	require.NoError(t, err)
	return dbController, mock
}

func TestNewDatabaseControllerRejectsTableNames(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewDatabaseControllerFromDB(db, "runs; DROP TABLE users", nil)
	assert.True(t, errors.Is(err, ErrInvalidSetting))
}

func TestEnsureSchema(t *testing.T) {
	dbController, mock := newMockDatabaseController(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS neuron_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, dbController.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRunRecord(t *testing.T) {
	dbController, mock := newMockDatabaseController(t)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	record := RunRecord{
		Token:        "abc",
		Host:         "trainer-1",
		Seed:         42,
		Dataset:      "OR",
		InputSize:    2,
		LearningRate: 0.5,
		StartTime:    start,
		EndTime:      start.Add(time.Minute),
		EndEpoch:     1000,
		FinalError:   0.04,
		FinalWeights: []float64{5.5, 5.25},
		FinalBias:    -2.5,
		Accuracy:     100,
		EndReason:    CommandStop,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO neuron_runs")).
		WithArgs("abc", "trainer-1", int64(42), "", "OR", 2, 0.5,
			"2024-05-01 12:00:00", "2024-05-01 12:01:00", 0, 1000, 0.04,
			"[5.5,5.25]", -2.5, 100.0, CommandStop).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, dbController.InsertRunRecord(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRunRecordError(t *testing.T) {
	dbController, mock := newMockDatabaseController(t)
	mock.ExpectExec("INSERT INTO neuron_runs").WillReturnError(errors.New("gone away"))

	err := dbController.InsertRunRecord(context.Background(), RunRecord{Token: "abc"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchRunsAsJSON(t *testing.T) {
	dbController, mock := newMockDatabaseController(t)
	rows := sqlmock.NewRows([]string{"id", "token", "final_weights"}).
		AddRow(int64(1), []byte("abc"), []byte("[1,2]"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM neuron_runs ORDER BY id")).WillReturnRows(rows)

	result, err := dbController.FetchRunsAsJSON(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": 1, "token": "abc", "final_weights": "[1,2]"}]`, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchRunsAsJSONEmpty(t *testing.T) {
	dbController, mock := newMockDatabaseController(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := dbController.FetchRunsAsJSON(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, result)
}

func TestQueryRunSummary(t *testing.T) {
	dbController, mock := newMockDatabaseController(t)
	rows := sqlmock.NewRows([]string{"dataset", "total_count", "converged_count", "avg_epochs", "avg_final_error", "min_final_error"}).
		AddRow("AND", int64(3), int64(2), 1500.0, 0.08, 0.03).
		AddRow("XOR", int64(1), int64(0), 10000.0, 0.5, 0.5)
	mock.ExpectQuery("SELECT(.|\\s)+FROM\\s+neuron_runs").WithArgs(100.0).WillReturnRows(rows)

	summary, err := dbController.QueryRunSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, RunSummary{Dataset: "AND", TotalCount: 3, ConvergedCount: 2, AvgEpochs: 1500, AvgFinalError: 0.08, MinFinalError: 0.03}, summary[0])
	assert.Equal(t, 0, summary[1].ConvergedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
