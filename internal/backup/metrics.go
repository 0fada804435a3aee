package backup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus instruments of the backup engine
type Metrics struct {
	BackupsTotal       *prometheus.CounterVec
	BackupDuration     prometheus.Histogram
	BackupSizeBytes    prometheus.Gauge
	RestoresTotal      *prometheus.CounterVec
	RestoreDuration    prometheus.Histogram
	StatementsTotal    *prometheus.CounterVec
	RetentionDeleted   prometheus.Counter
	SchedulerTicks     *prometheus.CounterVec
	ArtifactsStored    prometheus.Gauge
	MirrorUploadsTotal *prometheus.CounterVec
}

// NewMetrics registers the backup instruments with reg. A nil reg uses the
// default prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		BackupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizadmin_backups_total",
				Help: "Total number of backup runs by outcome",
			},
			[]string{"status"},
		),
		BackupDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bizadmin_backup_duration_seconds",
				Help:    "Duration of backup runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		BackupSizeBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bizadmin_backup_last_size_bytes",
				Help: "Stored size of the most recent backup artifact",
			},
		),
		RestoresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizadmin_restores_total",
				Help: "Total number of restore runs by outcome",
			},
			[]string{"status"},
		),
		RestoreDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bizadmin_restore_duration_seconds",
				Help:    "Duration of restore runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		StatementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizadmin_restore_statements_total",
				Help: "Replayed statements by outcome",
			},
			[]string{"status"}, // "succeeded", "conflict", "failed"
		),
		RetentionDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bizadmin_retention_deleted_total",
				Help: "Artifacts deleted by the retention policy",
			},
		),
		SchedulerTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizadmin_scheduler_ticks_total",
				Help: "Scheduled backup ticks by outcome",
			},
			[]string{"status"},
		),
		ArtifactsStored: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bizadmin_artifacts_stored",
				Help: "Number of artifacts currently in the store",
			},
		),
		MirrorUploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizadmin_mirror_uploads_total",
				Help: "Mirror uploads by provider and outcome",
			},
			[]string{"provider", "status"},
		),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordBackup records one backup run
func (m *Metrics) RecordBackup(duration time.Duration, size int64, err error) {
	if m == nil {
		return
	}
	m.BackupsTotal.WithLabelValues(statusLabel(err)).Inc()
	m.BackupDuration.Observe(duration.Seconds())
	if err == nil {
		m.BackupSizeBytes.Set(float64(size))
	}
}

// RecordRestore records one restore run and its statement outcomes
func (m *Metrics) RecordRestore(result *RestoreResult, err error) {
	if m == nil {
		return
	}
	m.RestoresTotal.WithLabelValues(statusLabel(err)).Inc()
	if result == nil {
		return
	}

	m.RestoreDuration.Observe(result.Duration.Seconds())
	for _, stmt := range result.Statements {
		switch {
		case stmt.Succeeded:
			m.StatementsTotal.WithLabelValues("succeeded").Inc()
		case stmt.Conflict:
			m.StatementsTotal.WithLabelValues("conflict").Inc()
		default:
			m.StatementsTotal.WithLabelValues("failed").Inc()
		}
	}
}

// RecordRetention records a retention pass
func (m *Metrics) RecordRetention(result *RetentionResult, stored int) {
	if m == nil {
		return
	}
	if result != nil {
		m.RetentionDeleted.Add(float64(result.BackupsDeleted))
	}
	m.ArtifactsStored.Set(float64(stored))
}

// RecordSchedulerTick records one scheduled run
func (m *Metrics) RecordSchedulerTick(err error) {
	if m == nil {
		return
	}
	m.SchedulerTicks.WithLabelValues(statusLabel(err)).Inc()
}

// RecordMirrorUpload records one mirror upload
func (m *Metrics) RecordMirrorUpload(provider string, err error) {
	if m == nil {
		return
	}
	m.MirrorUploadsTotal.WithLabelValues(provider, statusLabel(err)).Inc()
}
