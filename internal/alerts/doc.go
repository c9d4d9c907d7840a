// Package alerts is the Alert Evaluator (C5): pure predicates over the
// State Store plus open incidents, producing a de-duplicated ActiveAlert
// set.
//
// # Architecture
//
// Evaluator has no teacher analog in gray-logic-core's copied tree (it has
// no alerting component); the predicate-over-latest-reading shape is
// grounded on other_examples/bittertea97-microgrid-cloud's alarm
// evaluation (edge-triggered vs. debounced codes), and the 5s ticker loop
// on the teacher's own ticker idiom in knxd/manager.go's health-check
// loop.
//
// The freezer-temperature-critical predicate needs "two consecutive
// messages over threshold", which a single State Store snapshot cannot
// answer on its own — a snapshot only holds the latest reading. Evaluator
// tracks a small per-device streak counter fed by the same StateChange
// stream the Persistence Writer subscribes to, incrementing on freezer
// telemetry above threshold and resetting otherwise; every other predicate
// is a pure function of the current snapshot.
package alerts
