// Package catalog enumerates the quantized model artifacts the switcher
// can activate and resolves the currently active one.
package catalog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/model-switcher/model-switcher/internal/logging"
	"github.com/model-switcher/model-switcher/pkg/models"
)

// ModelExt is the artifact file extension
const ModelExt = ".gguf"

// Enumerate lists all model artifacts in dir, flat and sorted by name.
// Symlinks (the active pointer and its backup) and dotfiles (markers,
// lock) are not artifacts and are skipped.
func Enumerate(dir string) ([]models.ModelFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &DirNotFoundError{Dir: dir}
		}
		return nil, err
	}

	var files []models.ModelFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		if !strings.HasSuffix(name, ModelExt) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Raced with an external delete; skip it
			continue
		}
		files = append(files, models.ModelFile{
			Name:      name,
			SizeBytes: info.Size(),
		})
	}

	if len(files) == 0 {
		return nil, ErrNoModels
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// ResolveCurrent reads the indirection symlink and returns the base name
// of its target. An absent or broken pointer is not an error: it returns
// ("", false) and logs a warning.
func ResolveCurrent(ctx context.Context, dir, linkName string) (string, bool) {
	linkPath := filepath.Join(dir, linkName)

	target, err := os.Readlink(linkPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn(ctx, "failed to read active model pointer",
				slog.String("link", linkPath),
				slog.String("error", err.Error()))
		}
		return "", false
	}

	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	if _, err := os.Stat(target); err != nil {
		logging.Warn(ctx, "active model pointer is dangling",
			slog.String("link", linkPath),
			slog.String("target", target))
		return "", false
	}

	return filepath.Base(target), true
}

// Select validates a 1-based index entered by the operator and returns
// the corresponding artifact from the sorted listing.
func Select(input string, available []models.ModelFile) (models.ModelFile, error) {
	trimmed := strings.TrimSpace(input)

	idx, err := strconv.Atoi(trimmed)
	if err != nil || idx < 1 || idx > len(available) {
		return models.ModelFile{}, &InvalidSelectionError{Input: trimmed, Count: len(available)}
	}

	return available[idx-1], nil
}

// FindByName returns the artifact with the given file name, if present.
func FindByName(name string, available []models.ModelFile) (models.ModelFile, bool) {
	for _, m := range available {
		if m.Name == name {
			return m, true
		}
	}
	return models.ModelFile{}, false
}
