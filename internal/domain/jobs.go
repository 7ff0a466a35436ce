package domain

import (
	"context"
	"time"
)

// RunCause описывает источник запуска распределения.
type RunCause string

const (
	// RunCauseScheduled — запуск по ежедневному расписанию.
	RunCauseScheduled RunCause = "scheduled"
	// RunCauseAdmin — запуск за произвольную дату из админки.
	RunCauseAdmin RunCause = "admin"
)

// DistributionJob — задача на запуск распределения за дату.
type DistributionJob struct {
	ID          string    `json:"job_id,omitempty"`
	Date        time.Time `json:"date"`
	RunID       string    `json:"run_id"`
	Force       bool      `json:"force,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	Cause       RunCause  `json:"cause"`
}

// DistributionQueue описывает очередь задач распределения.
type DistributionQueue interface {
	Enqueue(ctx context.Context, job DistributionJob) error
	Receive(ctx context.Context) (DistributionJob, DistributionAckFunc, error)
}

// DistributionAckFunc подтверждает обработку или возвращает задачу в очередь.
type DistributionAckFunc func(success bool) error
