package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"snowpilot/internal/logger"
	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// Metric names emitted by the telemetry source.
const (
	MetricUtilization = "utilization"
	MetricQueueDepth  = "queue_depth"
	MetricCredits     = "credits"
	MetricQueryCount  = "query_count"
	MetricAvgElapsed  = "avg_elapsed_ms"
)

// TelemetrySource reads warehouse load, metering and query history from the
// target system and turns them into hourly observations keyed by warehouse.
type TelemetrySource struct {
	service  *Service
	lookback time.Duration
	log      logger.Logger
}

// NewTelemetrySource creates a telemetry source over an existing service.
func NewTelemetrySource(service *Service, lookback time.Duration, log logger.Logger) *TelemetrySource {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &TelemetrySource{service: service, lookback: lookback, log: log}
}

// Name identifies the source in logs and run reports.
func (t *TelemetrySource) Name() string {
	return "warehouse_telemetry"
}

// Collect gathers all telemetry rows for the lookback window. Any query or
// scan failure aborts the collection; partial results are never returned.
func (t *TelemetrySource) Collect(ctx context.Context) ([]models.Observation, error) {
	sizes, err := t.warehouseSizes(ctx)
	if err != nil {
		return nil, err
	}

	hours := int(t.lookback.Hours())
	if hours < 1 {
		hours = 1
	}

	var out []models.Observation

	load, err := t.collectLoad(ctx, hours, sizes)
	if err != nil {
		return nil, err
	}
	out = append(out, load...)

	metering, err := t.collectMetering(ctx, hours, sizes)
	if err != nil {
		return nil, err
	}
	out = append(out, metering...)

	queries, err := t.collectQueryStats(ctx, hours, sizes)
	if err != nil {
		return nil, err
	}
	out = append(out, queries...)

	t.log.Debug("Telemetry collected",
		logger.String("source", t.Name()),
		logger.Int("rows", len(out)))
	return out, nil
}

// warehouseSizes returns the current size per warehouse via SHOW WAREHOUSES.
// Column positions vary between versions, so rows are scanned generically
// and picked out by column name.
func (t *TelemetrySource) warehouseSizes(ctx context.Context) (map[string]string, error) {
	rows, err := t.service.Query(ctx, "SHOW WAREHOUSES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to read SHOW WAREHOUSES columns")
	}

	nameIdx, sizeIdx := -1, -1
	for i, c := range cols {
		switch strings.ToLower(c) {
		case "name":
			nameIdx = i
		case "size":
			sizeIdx = i
		}
	}
	if nameIdx < 0 || sizeIdx < 0 {
		return nil, errors.New(errors.ErrCodeResultParsing, "SHOW WAREHOUSES output missing name or size column")
	}

	sizes := make(map[string]string)
	for rows.Next() {
		values := make([]interface{}, len(cols))
		valuePtrs := make([]interface{}, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to scan SHOW WAREHOUSES row")
		}

		name, _ := values[nameIdx].(string)
		size, _ := values[sizeIdx].(string)
		if name != "" {
			sizes[name] = NormalizeSize(size)
		}
	}
	return sizes, rows.Err()
}

func (t *TelemetrySource) collectLoad(ctx context.Context, hours int, sizes map[string]string) ([]models.Observation, error) {
	query := fmt.Sprintf(`
		SELECT
			warehouse_name,
			date_trunc('hour', start_time) AS window_start,
			avg(avg_running),
			avg(avg_queued_load)
		FROM table(information_schema.warehouse_load_history(
			date_range_start => dateadd('hour', -%d, current_timestamp())
		))
		GROUP BY 1, 2
		ORDER BY 1, 2
	`, hours)

	rows, err := t.service.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var name string
		var windowStart time.Time
		var running, queued sql.NullFloat64

		if err := rows.Scan(&name, &windowStart, &running, &queued); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to scan load history row")
		}

		out = append(out,
			t.observation(name, MetricUtilization, windowStart, running.Float64, sizes),
			t.observation(name, MetricQueueDepth, windowStart, queued.Float64, sizes),
		)
	}
	return out, rows.Err()
}

func (t *TelemetrySource) collectMetering(ctx context.Context, hours int, sizes map[string]string) ([]models.Observation, error) {
	query := fmt.Sprintf(`
		SELECT
			warehouse_name,
			date_trunc('hour', start_time) AS window_start,
			sum(credits_used)
		FROM table(information_schema.warehouse_metering_history(
			date_range_start => dateadd('hour', -%d, current_timestamp())
		))
		GROUP BY 1, 2
		ORDER BY 1, 2
	`, hours)

	rows, err := t.service.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var name string
		var windowStart time.Time
		var credits sql.NullFloat64

		if err := rows.Scan(&name, &windowStart, &credits); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to scan metering history row")
		}

		out = append(out, t.observation(name, MetricCredits, windowStart, credits.Float64, sizes))
	}
	return out, rows.Err()
}

func (t *TelemetrySource) collectQueryStats(ctx context.Context, hours int, sizes map[string]string) ([]models.Observation, error) {
	query := fmt.Sprintf(`
		SELECT
			warehouse_name,
			date_trunc('hour', start_time) AS window_start,
			count(*),
			avg(total_elapsed_time)
		FROM table(information_schema.query_history(
			end_time_range_start => dateadd('hour', -%d, current_timestamp()),
			result_limit => 10000
		))
		WHERE warehouse_name IS NOT NULL
		GROUP BY 1, 2
		ORDER BY 1, 2
	`, hours)

	rows, err := t.service.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var name string
		var windowStart time.Time
		var count sql.NullInt64
		var elapsed sql.NullFloat64

		if err := rows.Scan(&name, &windowStart, &count, &elapsed); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to scan query history row")
		}

		out = append(out,
			t.observation(name, MetricQueryCount, windowStart, float64(count.Int64), sizes),
			t.observation(name, MetricAvgElapsed, windowStart, elapsed.Float64, sizes),
		)
	}
	return out, rows.Err()
}

func (t *TelemetrySource) observation(entity, metric string, windowStart time.Time, value float64, sizes map[string]string) models.Observation {
	obs := models.Observation{
		EntityKey:   entity,
		Metric:      metric,
		WindowStart: windowStart.UTC(),
		WindowEnd:   windowStart.UTC().Add(time.Hour),
		Value:       value,
		IngestedAt:  time.Now().UTC(),
	}
	if size, ok := sizes[entity]; ok && size != "" {
		obs.Dimensions = map[string]string{"size": size}
	}
	return obs
}
