package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

type FailurePayload struct {
	Folder string `json:"folder"`
	Error  string `json:"error"`
}

type WebhookPayload struct {
	Status           string           `json:"status"`
	Source           string           `json:"source"`
	DecryptedFolders int              `json:"decrypted_folders"`
	SkippedFolders   int              `json:"skipped_folders"`
	FailedFolders    int              `json:"failed_folders"`
	DecryptedBytes   int64            `json:"decrypted_bytes,omitempty"`
	ArchivesVerified bool             `json:"archives_verified"`
	Duration         string           `json:"duration"`
	Failures         []FailurePayload `json:"failures,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
	Repository       string           `json:"repository,omitempty"`
	RunID            string           `json:"run_id,omitempty"`
	RunURL           string           `json:"run_url,omitempty"`
}

type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	if n.url == "" {
		return nil
	}

	payload := buildWebhookPayload(summary)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "neo-backup-decrypt/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-success status: %d", resp.StatusCode)
	}

	return nil
}

func buildWebhookPayload(summary *RunSummary) *WebhookPayload {
	payload := &WebhookPayload{
		Source:           summary.Source,
		DecryptedFolders: summary.Decrypted,
		SkippedFolders:   summary.Skipped,
		FailedFolders:    summary.Failed,
		DecryptedBytes:   summary.DecryptedBytes,
		ArchivesVerified: summary.ArchivesVerified,
		Duration:         summary.Duration.String(),
		Timestamp:        time.Now().UTC(),
	}

	if summary.Success() {
		payload.Status = "success"
	} else {
		payload.Status = "failure"
		for _, f := range summary.Failures {
			payload.Failures = append(payload.Failures, FailurePayload{Folder: f.Folder, Error: f.Error})
		}
	}

	// Add GitHub context if available
	if repo := os.Getenv("GITHUB_REPOSITORY"); repo != "" {
		payload.Repository = repo
	}
	if runID := os.Getenv("GITHUB_RUN_ID"); runID != "" {
		payload.RunID = runID
		if serverURL := os.Getenv("GITHUB_SERVER_URL"); serverURL != "" {
			if repo := os.Getenv("GITHUB_REPOSITORY"); repo != "" {
				payload.RunURL = fmt.Sprintf("%s/%s/actions/runs/%s", serverURL, repo, runID)
			}
		}
	}

	return payload
}
