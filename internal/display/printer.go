// Package display renders command line output: colored status messages and
// aligned tables for backup listings, restore summaries and storage usage.
package display

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"bizadmin/internal/backup"
)

// Config holds the display options
type Config struct {
	ColorEnabled bool
	Theme        string
	TableStyle   string
	Quiet        bool
	Writer       io.Writer
}

// DefaultConfig returns colored output on stdout
func DefaultConfig() Config {
	return Config{
		ColorEnabled: true,
		Theme:        "dark",
		TableStyle:   DefaultTableStyle.Name,
		Writer:       os.Stdout,
	}
}

// Printer writes status messages and tables
type Printer struct {
	config Config
	writer io.Writer
	colors *ColorSystem
	icons  *IconSet
}

// NewPrinter creates a printer for config
func NewPrinter(config Config) *Printer {
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}
	return &Printer{
		config: config,
		writer: writer,
		colors: NewColorSystem(GetThemeByName(config.Theme), config.ColorEnabled),
		icons:  NewIconSet(),
	}
}

// Icons exposes the icon set
func (p *Printer) Icons() *IconSet {
	return p.icons
}

// Colors exposes the color system
func (p *Printer) Colors() *ColorSystem {
	return p.colors
}

// Writer returns the output destination
func (p *Printer) Writer() io.Writer {
	return p.writer
}

func (p *Printer) status(icon string, clr Color, message string) {
	prefix := p.colors.Colorize(p.icons.Render(icon), clr)
	fmt.Fprintf(p.writer, "%s %s\n", prefix, message)
}

// Success prints a success message
func (p *Printer) Success(message string) {
	if p.config.Quiet {
		return
	}
	p.status("success", p.colors.Theme().Success, message)
}

// Info prints an informational message
func (p *Printer) Info(message string) {
	if p.config.Quiet {
		return
	}
	p.status("info", p.colors.Theme().Info, message)
}

// Warning prints a warning, even in quiet mode
func (p *Printer) Warning(message string) {
	p.status("warning", p.colors.Theme().Warning, message)
}

// Error prints an error, even in quiet mode
func (p *Printer) Error(message string) {
	p.status("error", p.colors.Theme().Error, message)
}

// NewTable creates a table in the configured style
func (p *Printer) NewTable(headers ...string) *Table {
	table := NewTable(p.colors, headers...)
	table.SetStyle(GetTableStyle(p.config.TableStyle))
	return table
}

// PrintBackups prints artifacts as an aligned table with human readable sizes
func (p *Printer) PrintBackups(artifacts []*backup.Artifact) {
	if len(artifacts) == 0 {
		p.Info("No backups found.")
		return
	}

	table := p.NewTable("Name", "Created", "Size", "Compression", "Encrypted")
	table.SetColumnAlignment(2, AlignRight)

	var total int64
	for _, artifact := range artifacts {
		compression := "none"
		if artifact.Compressed {
			compression = string(artifact.Algorithm)
		}
		encrypted := "no"
		if artifact.Encrypted {
			encrypted = "yes"
		}
		table.AddRow(
			artifact.Name,
			artifact.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			FormatBytes(artifact.Size),
			compression,
			encrypted,
		)
		total += artifact.Size
	}

	table.RenderTo(p.writer)
	p.Info(fmt.Sprintf("Total backups: %d (%s)", len(artifacts), FormatBytes(total)))
}

// PrintRestoreResult summarizes a restore and lists the failed statements
func (p *Printer) PrintRestoreResult(result *backup.RestoreResult) {
	if len(result.DroppedTables) > 0 {
		p.Info(fmt.Sprintf("Dropped %d existing tables", len(result.DroppedTables)))
	}

	summary := fmt.Sprintf("Restored %s: %d statements succeeded, %d failed (%s)",
		result.Artifact, result.Succeeded, result.Failed, result.Duration.Round(time.Millisecond))
	if result.Failed == 0 {
		p.Success(summary)
		return
	}
	p.Warning(summary)

	table := p.NewTable("#", "Conflict", "Error")
	table.SetColumnAlignment(0, AlignRight)
	for _, stmt := range result.FailedStatements() {
		conflict := ""
		if stmt.Conflict {
			conflict = "yes"
		}
		table.AddRow(fmt.Sprintf("%d", stmt.Index), conflict, stmt.Error)
	}
	table.RenderTo(p.writer)
}

// PrintStorageUsage prints a storage usage report
func (p *Printer) PrintStorageUsage(report *backup.StorageUsageReport) {
	table := p.NewTable("Metric", "Value")
	table.AddRow("Backups", fmt.Sprintf("%d / %d", report.TotalBackups, report.MaxBackups))
	table.AddRow("Total size", FormatBytes(report.TotalSize))
	table.AddRow("Average size", FormatBytes(report.AverageBackupSize))
	table.AddRow("Compressed", fmt.Sprintf("%d", report.Compressed))
	table.AddRow("Encrypted", fmt.Sprintf("%d", report.Encrypted))
	if report.Newest != nil {
		table.AddRow("Newest", report.Newest.Name)
	}
	if report.Oldest != nil {
		table.AddRow("Oldest", report.Oldest.Name)
	}
	if report.LargestBackup != nil {
		table.AddRow("Largest", fmt.Sprintf("%s (%s)", report.LargestBackup.Name, FormatBytes(report.LargestBackup.Size)))
	}

	groups := make([]string, 0, len(report.StorageByAge))
	for group := range report.StorageByAge {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	for _, group := range groups {
		table.AddRow("Age "+group, FormatBytes(report.StorageByAge[group]))
	}
	if report.Mirror != "" {
		table.AddRow("Mirror", report.Mirror)
	}

	table.RenderTo(p.writer)
}

// PrintYAML writes v as YAML
func (p *Printer) PrintYAML(v interface{}) error {
	encoder := yaml.NewEncoder(p.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

// FormatBytes formats byte count as human readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
