package notify

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jorgepascosoto/neo-backup-decrypt/internal/backup"
)

type FolderFailure struct {
	Folder string
	Error  string
}

// RunSummary describes one decryption run over a backup directory.
type RunSummary struct {
	Source           string
	Decrypted        int
	Skipped          int
	Failed           int
	DecryptedBytes   int64
	DownloadedFiles  int
	ArchivesVerified bool
	Duration         time.Duration
	Failures         []FolderFailure
}

func NewRunSummary(source string, report *backup.Report) *RunSummary {
	s := &RunSummary{
		Source:         source,
		Decrypted:      report.Count(backup.StatusDecrypted),
		Skipped:        report.Count(backup.StatusSkipped),
		Failed:         report.Count(backup.StatusFailed),
		DecryptedBytes: report.Bytes(),
	}
	for _, o := range report.Failed() {
		f := FolderFailure{Folder: o.Folder}
		if o.Err != nil {
			f.Error = o.Err.Error()
		}
		s.Failures = append(s.Failures, f)
	}
	return s
}

func (s *RunSummary) Success() bool {
	return s.Failed == 0
}

func WriteGitHubSummary(summary *RunSummary) error {
	summaryFile := os.Getenv("GITHUB_STEP_SUMMARY")
	if summaryFile == "" {
		return nil // Not running in GitHub Actions
	}

	content := buildSummaryMarkdown(summary)

	f, err := os.OpenFile(summaryFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open summary file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	return nil
}

func buildSummaryMarkdown(summary *RunSummary) string {
	var sb strings.Builder

	sb.WriteString("## Backup Decryption Summary\n\n")

	if summary.Success() {
		sb.WriteString("**Status:** :white_check_mark: Success\n\n")
	} else {
		sb.WriteString("**Status:** :x: Failed\n\n")
	}

	sb.WriteString("| Property | Value |\n")
	sb.WriteString("|----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Source | `%s` |\n", summary.Source))
	if summary.DownloadedFiles > 0 {
		sb.WriteString(fmt.Sprintf("| Downloaded Files | %d |\n", summary.DownloadedFiles))
	}
	sb.WriteString(fmt.Sprintf("| Decrypted Folders | %d |\n", summary.Decrypted))
	sb.WriteString(fmt.Sprintf("| Skipped Folders | %d |\n", summary.Skipped))
	sb.WriteString(fmt.Sprintf("| Failed Folders | %d |\n", summary.Failed))
	sb.WriteString(fmt.Sprintf("| Decrypted Size | %s |\n", formatBytes(summary.DecryptedBytes)))
	sb.WriteString(fmt.Sprintf("| Archives Verified | %s |\n", boolToEmoji(summary.ArchivesVerified)))
	sb.WriteString(fmt.Sprintf("| Duration | %s |\n", summary.Duration.Round(time.Millisecond)))

	if len(summary.Failures) > 0 {
		sb.WriteString("\n### Failed Folders\n\n")
		sb.WriteString("| Folder | Error |\n")
		sb.WriteString("|--------|-------|\n")
		for _, f := range summary.Failures {
			sb.WriteString(fmt.Sprintf("| `%s` | %s |\n", f.Folder, escapeCell(f.Error)))
		}
	}

	sb.WriteString("\n")

	return sb.String()
}

// escapeCell keeps an error message inside one table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func formatBytes(bytes int64) string {
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

func boolToEmoji(b bool) string {
	if b {
		return ":white_check_mark:"
	}
	return ":x:"
}

func SetGitHubOutput(name, value string) error {
	outputFile := os.Getenv("GITHUB_OUTPUT")
	if outputFile == "" {
		return nil
	}

	f, err := os.OpenFile(outputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s=%s\n", name, value); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}
