// Package metrics регистрирует метрики Prometheus сервиса учётных записей.
// Метрики отдаются обработчиком promhttp на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Значения метки result.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultIgnored = "ignored"
	ResultSkipped = "skipped"
)

var (
	// WebhookEvents считает обработанные события вебхука по типу и результату.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "journal_accounts",
		Name:      "webhook_events_total",
		Help:      "Billing webhook events by type and result.",
	}, []string{"type", "result"})

	// DeletionSteps считает выполнение шагов удаления аккаунта.
	DeletionSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "journal_accounts",
		Name:      "deletion_steps_total",
		Help:      "Permanent deletion steps by step name and result.",
	}, []string{"step", "result"})

	// DeletionDuration — длительность полного удаления аккаунта.
	DeletionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "journal_accounts",
		Name:      "deletion_duration_seconds",
		Help:      "Duration of permanent account deletion.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// SweepAccounts считает аккаунты, обработанные ежедневной очисткой.
	SweepAccounts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "journal_accounts",
		Name:      "sweep_accounts_total",
		Help:      "Accounts processed by the deletion sweep by result.",
	}, []string{"result"})

	// TrialStarts считает попытки открыть пробный период.
	TrialStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "journal_accounts",
		Name:      "trial_starts_total",
		Help:      "Trial start attempts by result.",
	}, []string{"result"})

	// TriggerActions считает действия триггера обновления аккаунта.
	TriggerActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "journal_accounts",
		Name:      "account_trigger_actions_total",
		Help:      "Account update trigger actions.",
	}, []string{"action"})
)
