package persistence

import (
	"context"
	"fmt"
	"time"
)

// HistoryBucket is one wall-clock-aligned aggregation point returned by
// History: the mean of all samples whose timestamp fell in [BucketStart,
// BucketStart+bucket).
type HistoryBucket struct {
	BucketStart time.Time
	Avg         float64
	SampleCount int
}

// History returns bucketed averages for one device/metric series since a
// given time, grounded on the teacher's GetHistory query shape
// (internal/device/state_history_sqlite.go) but aggregating numeric values
// into fixed-width buckets rather than returning raw snapshots, since the
// Query Surface's chart endpoint (spec §6) wants a fixed-cardinality series
// regardless of how dense the underlying readings are.
//
// Bucket boundaries are aligned to Unix-epoch multiples of bucket, not to
// the query's since time, so repeated calls with a sliding since produce
// stable bucket boundaries.
func (r *SQLiteRepository) History(ctx context.Context, deviceID, metric string, since time.Time, bucket time.Duration) ([]HistoryBucket, error) {
	if bucket <= 0 {
		return nil, ErrInvalidBucket
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, value FROM sensor_readings
		WHERE device_id = ? AND metric = ? AND ts >= ?
		ORDER BY ts`,
		deviceID, metric, since.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	bucketSecs := int64(bucket / time.Second)
	if bucketSecs <= 0 {
		bucketSecs = 1
	}

	type accum struct {
		sum   float64
		count int
	}
	order := make([]int64, 0)
	buckets := make(map[int64]*accum)

	for rows.Next() {
		var tsStr string
		var value float64
		if err := rows.Scan(&tsStr, &value); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		ts, err := parseTimestamp(tsStr)
		if err != nil {
			return nil, err
		}
		key := (ts.Unix() / bucketSecs) * bucketSecs
		a, ok := buckets[key]
		if !ok {
			a = &accum{}
			buckets[key] = a
			order = append(order, key)
		}
		a.sum += value
		a.count++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}

	out := make([]HistoryBucket, 0, len(order))
	for _, key := range order {
		a := buckets[key]
		out = append(out, HistoryBucket{
			BucketStart: time.Unix(key, 0).UTC(),
			Avg:         a.sum / float64(a.count),
			SampleCount: a.count,
		})
	}
	return out, nil
}
