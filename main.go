package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jorgepascosoto/neo-backup-decrypt/internal/backup"
	"github.com/jorgepascosoto/neo-backup-decrypt/internal/config"
	"github.com/jorgepascosoto/neo-backup-decrypt/internal/notify"
	"github.com/jorgepascosoto/neo-backup-decrypt/internal/secret"
	"github.com/jorgepascosoto/neo-backup-decrypt/internal/storage"
)

var errFoldersFailed = errors.New("decryption failed")

// remoteSource mirrors a remote backup directory into a local one.
type remoteSource interface {
	DownloadAll(ctx context.Context, destDir string) (int, int64, error)
}

var newRemoteSource = func(ctx context.Context, cfg *config.Config) (remoteSource, error) {
	return storage.NewR2Client(ctx, cfg)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Received shutdown signal, canceling...")
		cancel()
	}()

	err := run(ctx, os.Args[1:], secret.NewResolver())
	if errors.Is(err, config.ErrUsage) {
		fmt.Fprintln(os.Stdout, config.Usage(os.Args[0]))
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, args []string, resolver *secret.Resolver) error {
	startTime := time.Now()

	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrUsage) {
			return err
		}
		return fmt.Errorf("failed to load config: %w", err)
	}

	log.Printf("Reading password from %s", secret.Describe(cfg.PasswordSource, cfg.Password))
	password, err := resolver.Resolve(ctx, cfg.PasswordSource, cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to resolve password: %w", err)
	}

	root := cfg.Directory
	downloaded := 0
	if cfg.IsRemote() {
		root, downloaded, err = fetchRemote(ctx, cfg)
		if err != nil {
			return err
		}
	}

	folders := backup.FindFolders(root)

	report := &backup.Report{}

	if cfg.HasRevisionLimits() {
		var excluded []backup.Folder
		folders, excluded = backup.SelectRevisions(folders, backup.RevisionPolicy{
			Count: cfg.MaxRevisions,
			Days:  cfg.MaxAgeDays,
		}, time.Now())
		for _, f := range excluded {
			report.Add(backup.Outcome{Folder: f.Path, Status: backup.StatusSkipped, Reason: backup.ReasonRevisionLimit})
		}
		if len(excluded) > 0 {
			log.Printf("Revision limits exclude %d folder(s)", len(excluded))
		}
	}

	log.Printf("Found %d backup folder(s) in %s", len(folders), root)

	decryptor := backup.NewDecryptor(password, backup.WithArchiveVerification(cfg.VerifyArchives))

	for i, folder := range folders {
		if ctx.Err() != nil {
			break
		}

		outcome := decryptor.DecryptFolder(ctx, folder)
		report.Add(outcome)

		switch outcome.Status {
		case backup.StatusDecrypted:
			log.Printf("[%d/%d] SUCCESS: %s -> %s (%d decrypted, %d copied, %d bytes)",
				i+1, len(folders), folder.Path, outcome.Output, outcome.DecryptedFiles, outcome.CopiedFiles, outcome.Bytes)
		case backup.StatusFailed:
			log.Printf("[%d/%d] FAILED: %s", i+1, len(folders), folder.Path)
		}
	}

	summary := notify.NewRunSummary(cfg.Directory, report)
	summary.DownloadedFiles = downloaded
	summary.ArchivesVerified = cfg.VerifyArchives
	summary.Duration = time.Since(startTime)

	if err := sendNotifications(ctx, cfg, summary); err != nil {
		log.Printf("Warning: failed to send notifications: %v", err)
	}
	setOutputs(summary)

	log.Printf("Completed: %d decrypted, %d skipped, %d failed (total time: %s)",
		summary.Decrypted, summary.Skipped, summary.Failed, summary.Duration.Round(time.Millisecond))

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	if cfg.StrictExit && !summary.Success() {
		return fmt.Errorf("%w for %d folder(s)", errFoldersFailed, summary.Failed)
	}

	return nil
}

// fetchRemote downloads an r2:// directory and returns the local copy. The
// copy is kept because the decrypted folders are written next to it.
func fetchRemote(ctx context.Context, cfg *config.Config) (string, int, error) {
	dest := cfg.DownloadDir
	if dest == "" {
		var err error
		dest, err = os.MkdirTemp("", "neo-backup-")
		if err != nil {
			return "", 0, fmt.Errorf("failed to create download directory: %w", err)
		}
	}

	client, err := newRemoteSource(ctx, cfg)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create R2 client: %w", err)
	}

	log.Printf("Downloading %s to %s", cfg.Directory, dest)
	count, size, err := client.DownloadAll(ctx, dest)
	if err != nil {
		return "", 0, fmt.Errorf("failed to download backups: %w", err)
	}
	log.Printf("Downloaded %d file(s) (%d bytes)", count, size)

	return dest, count, nil
}

func setOutputs(summary *notify.RunSummary) {
	outputs := []struct {
		name  string
		value int
	}{
		{"decrypted_count", summary.Decrypted},
		{"skipped_count", summary.Skipped},
		{"failed_count", summary.Failed},
	}
	for _, o := range outputs {
		if err := notify.SetGitHubOutput(o.name, strconv.Itoa(o.value)); err != nil {
			log.Printf("Warning: failed to set %s output: %v", o.name, err)
		}
	}
}

func sendNotifications(ctx context.Context, cfg *config.Config, summary *notify.RunSummary) error {
	// Write GitHub step summary
	if err := notify.WriteGitHubSummary(summary); err != nil {
		log.Printf("Warning: failed to write GitHub summary: %v", err)
	}

	// Send webhook notification
	if cfg.WebhookURL != "" {
		shouldNotify := (summary.Success() && cfg.NotifyOnSuccess) || (!summary.Success() && cfg.NotifyOnFailure)
		if shouldNotify {
			notifier := notify.NewWebhookNotifier(cfg.WebhookURL)
			if err := notifier.Notify(ctx, summary); err != nil {
				return fmt.Errorf("webhook notification failed: %w", err)
			}
		}
	}

	return nil
}
