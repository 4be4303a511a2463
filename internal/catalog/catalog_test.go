package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/model-switcher/model-switcher/pkg/models"
)

func writeModel(t *testing.T, dir, name string, size int) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0644)
	require.NoError(t, err)
}

func TestEnumerate_SortedByName(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "zephyr-3b.Q4_K_M.gguf", 30)
	writeModel(t, dir, "llama-7b.Q4_K_M.gguf", 70)
	writeModel(t, dir, "mistral-7b.Q5_K_M.gguf", 50)

	files, err := Enumerate(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "llama-7b.Q4_K_M.gguf", files[0].Name)
	assert.Equal(t, "mistral-7b.Q5_K_M.gguf", files[1].Name)
	assert.Equal(t, "zephyr-3b.Q4_K_M.gguf", files[2].Name)
	assert.Equal(t, int64(70), files[0].SizeBytes)
}

func TestEnumerate_SkipsSymlinksMarkersAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "a.gguf", 10)
	writeModel(t, dir, "notes.txt", 5)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".last_selected"), []byte("a.gguf\n"), 0644))
	require.NoError(t, os.Symlink("a.gguf", filepath.Join(dir, "current.gguf")))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0755))

	files, err := Enumerate(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.gguf", files[0].Name)
}

func TestEnumerate_DirNotFound(t *testing.T) {
	_, err := Enumerate(filepath.Join(t.TempDir(), "missing"))

	var notFound *DirNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Contains(t, notFound.Error(), "missing")
}

func TestEnumerate_Empty(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "readme.md", 5)

	_, err := Enumerate(dir)
	assert.ErrorIs(t, err, ErrNoModels)
}

func TestResolveCurrent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeModel(t, dir, "a.gguf", 10)
	require.NoError(t, os.Symlink("a.gguf", filepath.Join(dir, "current.gguf")))

	name, ok := ResolveCurrent(ctx, dir, "current.gguf")
	assert.True(t, ok)
	assert.Equal(t, "a.gguf", name)
}

func TestResolveCurrent_Absent(t *testing.T) {
	name, ok := ResolveCurrent(context.Background(), t.TempDir(), "current.gguf")
	assert.False(t, ok)
	assert.Empty(t, name)
}

func TestResolveCurrent_Dangling(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Symlink("gone.gguf", filepath.Join(dir, "current.gguf")))

	_, ok := ResolveCurrent(context.Background(), dir, "current.gguf")
	assert.False(t, ok)
}

func TestSelect(t *testing.T) {
	available := []models.ModelFile{
		{Name: "a.gguf"},
		{Name: "b.gguf"},
		{Name: "c.gguf"},
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"first", "1", "a.gguf", false},
		{"last", "3", "c.gguf", false},
		{"with whitespace", " 2 ", "b.gguf", false},
		{"zero", "0", "", true},
		{"out of range", "4", "", true},
		{"negative", "-1", "", true},
		{"non-numeric", "abc", "", true},
		{"empty", "", "", true},
		{"float", "1.5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(tt.input, available)
			if tt.wantErr {
				var invalid *InvalidSelectionError
				require.True(t, errors.As(err, &invalid))
				assert.Equal(t, 3, invalid.Count)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestFindByName(t *testing.T) {
	available := []models.ModelFile{{Name: "a.gguf"}, {Name: "b.gguf"}}

	m, ok := FindByName("b.gguf", available)
	assert.True(t, ok)
	assert.Equal(t, "b.gguf", m.Name)

	_, ok = FindByName("z.gguf", available)
	assert.False(t, ok)
}
