package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/iris-core/internal/codec"
	"github.com/nerrad567/iris-core/internal/persistence"
)

// handleCurrentWeather returns the garage controller's most recent weather
// reading. Weather is a capability of the garage controller, not a
// standalone device, per the bus topic hierarchy (home/garage/weather/*).
func (s *Server) handleCurrentWeather(w http.ResponseWriter, r *http.Request) {
	_, cancel := context.WithTimeout(r.Context(), readDeadline)
	defer cancel()

	snap := s.store.Snapshot(codec.DeviceGarageController)
	if snap == nil || snap.Weather == nil {
		writeJSON(w, http.StatusOK, currentWeatherResponse{})
		return
	}
	writeJSON(w, http.StatusOK, currentWeatherResponse{
		TemperatureF: snap.Weather.TemperatureF,
		PressureInHg: snap.Weather.PressureInHg,
	})
}

// handleWeatherHistory returns bucketed weather readings for the garage
// controller over a requested window.
//
// Query parameters:
//   - range: one of 24h, 7d, 30d (default 24h); ignored if start is set
//   - start: RFC3339 timestamp, overrides range
//   - bucket: one of minute, hour, day (default hour)
func (s *Server) handleWeatherHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readDeadline)
	defer cancel()

	since, err := parseHistoryWindow(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	bucket := parseBucket(r.URL.Query().Get("bucket"))

	tempRows, err := s.repo.History(ctx, codec.DeviceGarageController, codec.MetricGarageWeatherTemperatureF, since, bucket)
	if err != nil {
		writeInternalError(w, "failed to load weather temperature history")
		return
	}
	pressureRows, err := s.repo.History(ctx, codec.DeviceGarageController, codec.MetricGarageWeatherPressureInHg, since, bucket)
	if err != nil {
		writeInternalError(w, "failed to load weather pressure history")
		return
	}

	writeJSON(w, http.StatusOK, mergeHistory(tempRows, pressureRows))
}

func parseHistoryWindow(r *http.Request) (time.Time, error) {
	if start := r.URL.Query().Get("start"); start != "" {
		return time.Parse(time.RFC3339, start)
	}
	switch r.URL.Query().Get("range") {
	case "7d":
		return time.Now().Add(-7 * 24 * time.Hour), nil
	case "30d":
		return time.Now().Add(-30 * 24 * time.Hour), nil
	default:
		return time.Now().Add(-24 * time.Hour), nil
	}
}

func parseBucket(v string) time.Duration {
	switch v {
	case "minute":
		return time.Minute
	case "day":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// mergeHistory aligns two single-metric bucketed series on their bucket
// start timestamp into the combined {ts, temperature_f?, pressure_inhg?}
// rows the Query Surface returns.
func mergeHistory(temp, pressure []persistence.HistoryBucket) []historyPoint {
	byTs := make(map[string]*historyPoint)
	order := make([]string, 0, len(temp)+len(pressure))

	merge := func(rows []persistence.HistoryBucket, assign func(*historyPoint, float64)) {
		for _, row := range rows {
			ts := row.BucketStart.UTC().Format(time.RFC3339)
			p, ok := byTs[ts]
			if !ok {
				p = &historyPoint{Ts: ts}
				byTs[ts] = p
				order = append(order, ts)
			}
			assign(p, row.Avg)
		}
	}
	merge(temp, func(p *historyPoint, v float64) { p.TemperatureF = &v })
	merge(pressure, func(p *historyPoint, v float64) { p.PressureInHg = &v })

	points := make([]historyPoint, 0, len(order))
	for _, ts := range order {
		points = append(points, *byTs[ts])
	}
	return points
}
