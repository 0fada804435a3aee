package backup

import (
	"regexp"
	"strings"
	"time"
)

var artifactNamePattern = regexp.MustCompile(`^backup-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z\.sql$`)

// ArtifactName derives the artifact name for t: the UTC ISO-8601 timestamp
// with milliseconds, colons and periods replaced by dashes.
func ArtifactName(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return "backup-" + stamp + ".sql"
}

// ValidateArtifactName rejects anything that is not exactly an artifact name.
// It never touches the filesystem.
func ValidateArtifactName(name string) error {
	if !artifactNamePattern.MatchString(name) {
		return NewValidationError("invalid backup file name", nil).WithContext("name", name)
	}
	return nil
}

// IsArtifactName reports whether name matches the artifact naming pattern
func IsArtifactName(name string) bool {
	return artifactNamePattern.MatchString(name)
}
