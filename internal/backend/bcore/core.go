// Package bcore holds the backend Client contract and Result type in a leaf
// package so both the aggregator and direct implementations, and the
// top-level backend factory, can depend on it without an import cycle.
package bcore

import (
	"context"
	"time"

	"github.com/vitaliisemenov/zmc-reconciler/internal/alarm"
)

// Result is the tagged outcome of a single backend call.
type Result struct {
	OK         bool
	StatusCode int
	Duration   time.Duration
	Detail     string
	Err        error
}

// Success builds an OK Result.
func Success(statusCode int, duration time.Duration, detail string) Result {
	return Result{OK: true, StatusCode: statusCode, Duration: duration, Detail: detail}
}

// Failure builds a failed Result.
func Failure(statusCode int, duration time.Duration, err error) Result {
	return Result{OK: false, StatusCode: statusCode, Duration: duration, Err: err}
}

// Client is the capability set both backend variants implement.
type Client interface {
	Push(ctx context.Context, notifications []alarm.Notification) Result
	CreateSuppression(ctx context.Context, rule alarm.SuppressionRule) (id string, res Result)
	DeleteSuppression(ctx context.Context, id string) Result
	ListSuppressions(ctx context.Context) ([]alarm.SuppressionRule, Result)
	ListActive(ctx context.Context) ([]alarm.Notification, Result)
	Health(ctx context.Context) Result
	Close() error
}
