package backup

import (
	"time"
)

// StorageUsageReport summarizes what the artifact store holds
type StorageUsageReport struct {
	TotalBackups      int              `json:"totalBackups"`
	TotalSize         int64            `json:"totalSize"`
	AverageBackupSize int64            `json:"averageBackupSize"`
	Compressed        int              `json:"compressed"`
	Encrypted         int              `json:"encrypted"`
	Newest            *Artifact        `json:"newest,omitempty"`
	Oldest            *Artifact        `json:"oldest,omitempty"`
	LargestBackup     *Artifact        `json:"largestBackup,omitempty"`
	StorageByAge      map[string]int64 `json:"storageByAge"`
	MaxBackups        int              `json:"maxBackups"`
	Mirror            string           `json:"mirror,omitempty"`
	GeneratedAt       time.Time        `json:"generatedAt"`
}

// ageGroup buckets an artifact by how long ago it was written
func ageGroup(age time.Duration) string {
	switch {
	case age < 24*time.Hour:
		return "last_24h"
	case age < 7*24*time.Hour:
		return "last_7d"
	case age < 30*24*time.Hour:
		return "last_30d"
	default:
		return "older"
	}
}

// StorageUsage builds a usage report over the current store contents
func (m *Manager) StorageUsage() (*StorageUsageReport, error) {
	artifacts, err := m.store.List()
	if err != nil {
		return nil, err
	}

	now := m.now()
	report := &StorageUsageReport{
		TotalBackups: len(artifacts),
		StorageByAge: make(map[string]int64),
		MaxBackups:   m.retention.MaxBackups(),
		GeneratedAt:  now,
	}
	if m.mirror != nil {
		report.Mirror = m.mirror.Provider()
	}
	if len(artifacts) == 0 {
		return report, nil
	}

	// List is newest first
	report.Newest = artifacts[0]
	report.Oldest = artifacts[len(artifacts)-1]

	for _, artifact := range artifacts {
		report.TotalSize += artifact.Size
		report.StorageByAge[ageGroup(now.Sub(artifact.CreatedAt))] += artifact.Size

		if artifact.Compressed {
			report.Compressed++
		}
		if artifact.Encrypted {
			report.Encrypted++
		}
		if report.LargestBackup == nil || artifact.Size > report.LargestBackup.Size {
			report.LargestBackup = artifact
		}
	}
	report.AverageBackupSize = report.TotalSize / int64(len(artifacts))

	return report, nil
}
