package warehouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowpilot/internal/logger"
	"snowpilot/pkg/models"
)

func newTestTelemetry(t *testing.T) (*TelemetrySource, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(validConfig(), logger.NewNop())
	svc.SetDB(db)
	return NewTelemetrySource(svc, 24*time.Hour, logger.NewNop()), mock
}

func TestTelemetrySourceName(t *testing.T) {
	src := NewTelemetrySource(nil, 0, logger.NewNop())
	assert.Equal(t, "warehouse_telemetry", src.Name())
	assert.Equal(t, 24*time.Hour, src.lookback)
}

func TestCollect(t *testing.T) {
	src, mock := newTestTelemetry(t)
	window := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SHOW WAREHOUSES").
		WillReturnRows(sqlmock.NewRows([]string{"name", "state", "size"}).
			AddRow("ETL_WH", "STARTED", "Large").
			AddRow("BI_WH", "SUSPENDED", "X-Small"))

	mock.ExpectQuery("warehouse_load_history").
		WillReturnRows(sqlmock.NewRows([]string{"warehouse_name", "window_start", "running", "queued"}).
			AddRow("ETL_WH", window, 0.3, 0.0))

	mock.ExpectQuery("warehouse_metering_history").
		WillReturnRows(sqlmock.NewRows([]string{"warehouse_name", "window_start", "credits"}).
			AddRow("ETL_WH", window, 1.25))

	mock.ExpectQuery("query_history").
		WillReturnRows(sqlmock.NewRows([]string{"warehouse_name", "window_start", "count", "elapsed"}).
			AddRow("ETL_WH", window, int64(42), 350.5))

	obs, err := src.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 5)
	assert.NoError(t, mock.ExpectationsWereMet())

	byMetric := make(map[string]models.Observation)
	for _, o := range obs {
		assert.Equal(t, "ETL_WH", o.EntityKey)
		assert.Equal(t, window, o.WindowStart)
		assert.Equal(t, window.Add(time.Hour), o.WindowEnd)
		assert.Equal(t, "LARGE", o.Dimensions["size"])
		assert.False(t, o.IngestedAt.IsZero())
		byMetric[o.Metric] = o
	}

	assert.Equal(t, 0.3, byMetric[MetricUtilization].Value)
	assert.Equal(t, 0.0, byMetric[MetricQueueDepth].Value)
	assert.Equal(t, 1.25, byMetric[MetricCredits].Value)
	assert.Equal(t, 42.0, byMetric[MetricQueryCount].Value)
	assert.Equal(t, 350.5, byMetric[MetricAvgElapsed].Value)
}

func TestCollectNoPartialResults(t *testing.T) {
	src, mock := newTestTelemetry(t)

	mock.ExpectQuery("SHOW WAREHOUSES").
		WillReturnRows(sqlmock.NewRows([]string{"name", "size"}).
			AddRow("ETL_WH", "Large"))

	mock.ExpectQuery("warehouse_load_history").
		WillReturnError(fmt.Errorf("warehouse suspended"))

	obs, err := src.Collect(context.Background())
	require.Error(t, err)
	assert.Nil(t, obs)
	assert.Contains(t, err.Error(), "Query failed")
}

func TestCollectMeteringFailureAborts(t *testing.T) {
	src, mock := newTestTelemetry(t)
	window := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SHOW WAREHOUSES").
		WillReturnRows(sqlmock.NewRows([]string{"name", "size"}).
			AddRow("ETL_WH", "Large"))

	mock.ExpectQuery("warehouse_load_history").
		WillReturnRows(sqlmock.NewRows([]string{"warehouse_name", "window_start", "running", "queued"}).
			AddRow("ETL_WH", window, 0.3, 0.0))

	mock.ExpectQuery("warehouse_metering_history").
		WillReturnError(fmt.Errorf("insufficient privileges"))

	obs, err := src.Collect(context.Background())
	require.Error(t, err)
	assert.Nil(t, obs)
}

func TestCollectMissingSizeColumn(t *testing.T) {
	src, mock := newTestTelemetry(t)

	mock.ExpectQuery("SHOW WAREHOUSES").
		WillReturnRows(sqlmock.NewRows([]string{"name", "state"}).
			AddRow("ETL_WH", "STARTED"))

	_, err := src.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name or size column")
}

func TestCollectUnknownWarehouseHasNoSizeDimension(t *testing.T) {
	src, mock := newTestTelemetry(t)
	window := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SHOW WAREHOUSES").
		WillReturnRows(sqlmock.NewRows([]string{"name", "size"}).
			AddRow("ETL_WH", "Large"))

	mock.ExpectQuery("warehouse_load_history").
		WillReturnRows(sqlmock.NewRows([]string{"warehouse_name", "window_start", "running", "queued"}).
			AddRow("ADHOC_WH", window, 0.1, 0.0))

	mock.ExpectQuery("warehouse_metering_history").
		WillReturnRows(sqlmock.NewRows([]string{"warehouse_name", "window_start", "credits"}))

	mock.ExpectQuery("query_history").
		WillReturnRows(sqlmock.NewRows([]string{"warehouse_name", "window_start", "count", "elapsed"}))

	obs, err := src.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 2)
	for _, o := range obs {
		assert.Equal(t, "ADHOC_WH", o.EntityKey)
		assert.Nil(t, o.Dimensions)
	}
}
