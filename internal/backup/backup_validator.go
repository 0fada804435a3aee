package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// riskyKeywords are the statements a backup script is not expected to need
var riskyKeywords = []string{
	"DROP DATABASE",
	"DROP TABLE",
	"DELETE FROM",
	"TRUNCATE",
	"ALTER TABLE",
	"CREATE INDEX",
	"CREATE TRIGGER",
}

// ScriptValidator scans a restore script for high-risk keywords. In advisory
// mode hits are only reported; in strict mode they reject the script.
type ScriptValidator struct {
	strict   bool
	notifier Notifier
}

// NewScriptValidator creates a validator
func NewScriptValidator(strict bool, notifier Notifier) *ScriptValidator {
	return &ScriptValidator{strict: strict, notifier: notifier}
}

// Strict reports whether the validator rejects on findings
func (v *ScriptValidator) Strict() bool {
	return v.strict
}

// Findings returns the risky keywords present in script, in list order
func (v *ScriptValidator) Findings(script string) []string {
	upper := strings.ToUpper(script)

	var found []string
	for _, keyword := range riskyKeywords {
		if strings.Contains(upper, keyword) {
			found = append(found, keyword)
		}
	}
	return found
}

// Validate warns about every finding and, in strict mode, rejects the script
func (v *ScriptValidator) Validate(script string) error {
	findings := v.Findings(script)
	for _, keyword := range findings {
		notify(v.notifier, levelWarn, "Potentially dangerous SQL detected", map[string]interface{}{"keyword": keyword})
	}

	if !v.strict || len(findings) == 0 {
		return nil
	}

	var errs ValidationErrors
	for _, keyword := range findings {
		errs.Add("script", "contains "+keyword, keyword)
	}
	return NewValidationError("backup script rejected by strict validation", errs).
		WithContext("keywords", findings)
}

// CalculateChecksum calculates a SHA-256 checksum for the given data
func CalculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// VerifyChecksum verifies that the data matches the expected checksum
func VerifyChecksum(data []byte, expectedChecksum string) bool {
	return CalculateChecksum(data) == expectedChecksum
}
