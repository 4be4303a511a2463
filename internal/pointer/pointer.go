// Package pointer owns the on-disk indirection for the active model: an
// atomic symlink swap, a rollback backup, and informational markers.
package pointer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/model-switcher/model-switcher/internal/config"
	"github.com/model-switcher/model-switcher/internal/logging"
	"github.com/model-switcher/model-switcher/pkg/models"
)

// Swap atomically repoints the indirection symlink at dir/linkName to
// target (a file name inside dir). A temporary symlink is created and
// renamed over the pointer, so a concurrent reader never observes the
// pointer missing or half-written.
func Swap(ctx context.Context, dir, linkName, target string) error {
	if _, err := os.Stat(filepath.Join(dir, target)); err != nil {
		return fmt.Errorf("swap target %s does not exist: %w", target, err)
	}

	linkPath := filepath.Join(dir, linkName)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp.%d", linkName, os.Getpid()))

	// A stale temp link from a killed invocation would fail the symlink call
	_ = os.Remove(tmpPath)

	if err := os.Symlink(target, tmpPath); err != nil {
		return fmt.Errorf("failed to create temporary pointer: %w", err)
	}

	if err := os.Rename(tmpPath, linkPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to commit pointer swap: %w", err)
	}

	logging.Debug(ctx, "pointer swapped",
		slog.String("link", linkPath),
		slog.String("target", target))
	return nil
}

// Backup snapshots the current pointer target to the backup symlink and
// returns the target name. A missing or unreadable pointer is tolerated:
// it returns ("", false) and removes any stale backup so a later
// rollback cannot restore an unrelated target.
func Backup(ctx context.Context, dir, linkName string) (string, bool) {
	linkPath := filepath.Join(dir, linkName)
	backupPath := linkPath + config.BackupSuffix

	target, err := os.Readlink(linkPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn(ctx, "could not snapshot pointer for rollback",
				slog.String("link", linkPath),
				slog.String("error", err.Error()))
		}
		_ = os.Remove(backupPath)
		return "", false
	}

	_ = os.Remove(backupPath)
	if err := os.Symlink(target, backupPath); err != nil {
		logging.Warn(ctx, "failed to write rollback backup",
			slog.String("path", backupPath),
			slog.String("error", err.Error()))
		return "", false
	}

	return filepath.Base(target), true
}

// ReadBackup returns the backed-up pointer target, if a backup exists.
func ReadBackup(dir, linkName string) (string, bool) {
	backupPath := filepath.Join(dir, linkName) + config.BackupSuffix
	target, err := os.Readlink(backupPath)
	if err != nil {
		return "", false
	}
	return filepath.Base(target), true
}

// DiscardBackup removes the rollback snapshot after a committed switch.
func DiscardBackup(ctx context.Context, dir, linkName string) {
	backupPath := filepath.Join(dir, linkName) + config.BackupSuffix
	if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		logging.Warn(ctx, "failed to discard rollback backup",
			slog.String("path", backupPath),
			slog.String("error", err.Error()))
	}
}

// Restore repoints the indirection to the backed-up target and consumes
// the backup. It fails when no backup exists.
func Restore(ctx context.Context, dir, linkName string) (string, error) {
	target, ok := ReadBackup(dir, linkName)
	if !ok {
		return "", fmt.Errorf("no rollback backup exists for %s", linkName)
	}

	if err := Swap(ctx, dir, linkName, target); err != nil {
		return "", fmt.Errorf("failed to restore pointer to %s: %w", target, err)
	}

	DiscardBackup(ctx, dir, linkName)
	return target, nil
}

// WriteMarkers persists the informational history markers. Best-effort:
// failures are logged, never returned.
func WriteMarkers(ctx context.Context, dir, current, previous string) {
	write := func(name, value string) {
		if value == "" {
			return
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(value+"\n"), 0644); err != nil {
			logging.Warn(ctx, "failed to write history marker",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}

	write(config.LastSelectedMarker, current)
	write(config.PreviousMarker, previous)
}

// ReadHistory reads the history markers back. Missing markers leave the
// corresponding field empty.
func ReadHistory(dir string) models.HistoryRecord {
	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	}

	return models.HistoryRecord{
		Current:  read(config.LastSelectedMarker),
		Previous: read(config.PreviousMarker),
	}
}
