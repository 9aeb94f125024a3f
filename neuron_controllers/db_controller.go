package neuron_controllers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"regexp"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultRunTable = "neuron_runs"

	// A run counts as converged when every prediction was correct.
	convergedAccuracy = 100.0
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DatabaseController writes finished runs to MySQL. It only ever reports on
// training; nothing is loaded back into a unit.
type DatabaseController struct {
	db        *sql.DB
	tableName string
	logger    *zap.Logger
}

func NewDatabaseController(username, password, dbHost, dbPort, dbName, tableName string, logger *zap.Logger) (*DatabaseController, error) {
	config := mysql.NewConfig()
	config.User = username
	config.Passwd = password
	config.Net = "tcp"
	config.Addr = net.JoinHostPort(dbHost, dbPort)
	config.DBName = dbName
	config.ParseTime = true

	db, err := sql.Open("mysql", config.FormatDSN())
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to the database")
	}

	dbController, err := NewDatabaseControllerFromDB(db, tableName, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return dbController, nil
}

func NewDatabaseControllerFromDB(db *sql.DB, tableName string, logger *zap.Logger) (*DatabaseController, error) {
	if tableName == "" {
		tableName = DefaultRunTable
	}
	if !tableNamePattern.MatchString(tableName) {
		return nil, errors.Wrapf(ErrInvalidSetting, "invalid table name %q", tableName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseController{db: db, tableName: tableName, logger: logger}, nil
}

func (dc *DatabaseController) CloseDb() error {
	return dc.db.Close()
}

func (dc *DatabaseController) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		token CHAR(64) NOT NULL,
		host VARCHAR(255),
		seed BIGINT,
		program_version VARCHAR(64),
		dataset VARCHAR(255),
		input_size INT,
		learning_rate DOUBLE,
		start_time DATETIME,
		end_time DATETIME,
		start_epoch INT,
		end_epoch INT,
		final_error DOUBLE,
		final_weights JSON,
		final_bias DOUBLE,
		accuracy DOUBLE,
		end_reason VARCHAR(32)
	)`, dc.tableName)
	_, err := dc.db.ExecContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to create run table")
	}
	return nil
}

func (dc *DatabaseController) InsertRunRecord(ctx context.Context, record RunRecord) error {
	weightsJSON, err := json.Marshal(record.FinalWeights)
	if err != nil {
		return errors.Wrap(err, "failed to marshal weights")
	}

	query := fmt.Sprintf("INSERT INTO %s (token, host, seed, program_version, dataset, input_size, learning_rate, start_time, end_time, start_epoch, end_epoch, final_error, final_weights, final_bias, accuracy, end_reason) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", dc.tableName)
	_, err = dc.db.ExecContext(ctx, query,
		record.Token,
		record.Host,
		record.Seed,
		record.ProgramVersion,
		record.Dataset,
		record.InputSize,
		record.LearningRate,
		record.StartTime.UTC().Format("2006-01-02 15:04:05"),
		record.EndTime.UTC().Format("2006-01-02 15:04:05"),
		record.StartEpoch,
		record.EndEpoch,
		record.FinalError,
		string(weightsJSON),
		record.FinalBias,
		record.Accuracy,
		record.EndReason,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert data into MySQL")
	}
	dc.logger.Debug("run stored", zap.String("token", record.Token), zap.String("table", dc.tableName))
	return nil
}

func (dc *DatabaseController) FetchRunsAsJSON(ctx context.Context) (string, error) {
	rows, err := dc.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY id", dc.tableName))
	if err != nil {
		return "", errors.Wrap(err, "error retrieving data")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", errors.Wrap(err, "error getting columns")
	}

	results := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePointers := make([]interface{}, len(columns))
		for i := range values {
			valuePointers[i] = &values[i]
		}

		if err := rows.Scan(valuePointers...); err != nil {
			return "", errors.Wrap(err, "error scanning row")
		}

		rowMap := make(map[string]interface{})
		for i, col := range columns {
			// Convert []byte to string for readability
			if b, ok := values[i].([]byte); ok {
				rowMap[col] = string(b)
			} else {
				rowMap[col] = values[i]
			}
		}
		results = append(results, rowMap)
	}
	if err := rows.Err(); err != nil {
		return "", errors.Wrap(err, "error iterating rows")
	}

	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "error marshaling results to JSON")
	}
	return string(jsonData), nil
}

// QueryRunSummary groups the stored runs by dataset.
func (dc *DatabaseController) QueryRunSummary(ctx context.Context) ([]RunSummary, error) {
	query := fmt.Sprintf(`
        SELECT
            dataset,
            COUNT(*) AS total_count,
            COUNT(CASE WHEN accuracy >= ? THEN 1 END) AS converged_count,
            AVG(end_epoch - start_epoch) AS avg_epochs,
            AVG(final_error) AS avg_final_error,
            MIN(final_error) AS min_final_error
        FROM
            %s
        GROUP BY
            dataset
        ORDER BY
            dataset;
    `, dc.tableName)

	rows, err := dc.db.QueryContext(ctx, query, convergedAccuracy)
	if err != nil {
		return nil, errors.Wrap(err, "error querying run summary")
	}
	defer rows.Close()

	results := []RunSummary{}
	for rows.Next() {
		var data RunSummary
		err := rows.Scan(&data.Dataset, &data.TotalCount, &data.ConvergedCount, &data.AvgEpochs, &data.AvgFinalError, &data.MinFinalError)
		if err != nil {
			return nil, errors.Wrap(err, "error scanning run summary")
		}
		results = append(results, data)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating run summary")
	}
	return results, nil
}
