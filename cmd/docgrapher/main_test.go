package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/siherrmann/docgrapher/core/convert"
	"github.com/siherrmann/docgrapher/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestNewApp(t *testing.T) {
	app := newApp()

	t.Run("Valid call with all commands registered", func(t *testing.T) {
		for _, name := range []string{"ingest", "delete", "sweep", "search", "related", "knowledge"} {
			assert.NotNil(t, app.Command(name), "Expected command %s to be registered", name)
		}
	})

	t.Run("Valid call with global flag defaults", func(t *testing.T) {
		var logLevel, config *cli.StringFlag
		for _, flag := range app.Flags {
			if f, ok := flag.(*cli.StringFlag); ok {
				switch f.Name {
				case "log-level":
					logLevel = f
				case "config":
					config = f
				}
			}
		}
		require.NotNil(t, logLevel, "Expected log-level flag")
		require.NotNil(t, config, "Expected config flag")
		assert.Equal(t, "info", logLevel.Value, "Expected default log level info")
		assert.Equal(t, "docgrapher.yaml", config.Value, "Expected default config path")
	})

	t.Run("Invalid call to ingest without files", func(t *testing.T) {
		err := newApp().Run([]string{"docgrapher", "ingest"})
		require.Error(t, err, "Expected error without files")
		assert.Contains(t, err.Error(), "at least one file", "Expected missing file error")
	})

	t.Run("Invalid call to delete with malformed id", func(t *testing.T) {
		err := newApp().Run([]string{"docgrapher", "delete", "not-a-uuid"})
		require.Error(t, err, "Expected error for malformed id")
		assert.Contains(t, err.Error(), "invalid document id", "Expected id parse error")
	})

	t.Run("Invalid call to related without id", func(t *testing.T) {
		err := newApp().Run([]string{"docgrapher", "related"})
		require.Error(t, err, "Expected error without id")
		assert.Contains(t, err.Error(), "exactly one document id", "Expected missing id error")
	})

	t.Run("Invalid call to knowledge without name", func(t *testing.T) {
		err := newApp().Run([]string{"docgrapher", "knowledge"})
		require.Error(t, err, "Expected error without name")
		assert.Contains(t, err.Error(), "a name is required", "Expected missing name error")
	})

	t.Run("Invalid call to knowledge with document kind", func(t *testing.T) {
		err := newApp().Run([]string{"docgrapher", "knowledge", "--kind", "document", "Bulk export"})
		require.Error(t, err, "Expected error for document kind")
		assert.Contains(t, err.Error(), "invalid kind", "Expected kind error")
	})

	t.Run("Invalid call to search without query", func(t *testing.T) {
		err := newApp().Run([]string{"docgrapher", "search"})
		require.Error(t, err, "Expected error without query")
		assert.Contains(t, err.Error(), "a query is required", "Expected missing query error")
	})

	t.Run("Invalid call to search with zero top-k", func(t *testing.T) {
		err := newApp().Run([]string{"docgrapher", "search", "--top-k", "0", "billing"})
		assert.ErrorIs(t, err, model.ErrInvalidConfig, "Expected invalid configuration error")
	})

	t.Run("Invalid call with unknown log level", func(t *testing.T) {
		err := newApp().Run([]string{"docgrapher", "--log-level", "verbose", "ingest", "a.md"})
		require.Error(t, err, "Expected error for unknown log level")
		assert.Contains(t, err.Error(), "invalid log level", "Expected log level error")
	})
}

func TestParseLogLevel(t *testing.T) {
	t.Run("Valid call with known levels", func(t *testing.T) {
		levels := map[string]slog.Level{
			"debug": slog.LevelDebug,
			"INFO":  slog.LevelInfo,
			"Warn":  slog.LevelWarn,
			"error": slog.LevelError,
		}
		for value, expected := range levels {
			level, err := parseLogLevel(value)
			assert.NoError(t, err, "Expected no error for %s", value)
			assert.Equal(t, expected, level, "Expected level for %s", value)
		}
	})

	t.Run("Invalid call with unknown level", func(t *testing.T) {
		_, err := parseLogLevel("trace")
		assert.Error(t, err, "Expected error for unknown level")
	})
}

func TestReadJobs(t *testing.T) {
	dir := t.TempDir()
	markdownPath := filepath.Join(dir, "guide.md")
	textPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(markdownPath, []byte("# Guide\n\nSetup steps.\n"), 0o600), "Expected markdown file to be written")
	require.NoError(t, os.WriteFile(textPath, []byte("Plain notes\r\nsecond line"), 0o600), "Expected text file to be written")

	t.Run("Valid call converts by extension", func(t *testing.T) {
		jobs, err := readJobs(convert.DefaultRegistry(), []string{markdownPath, textPath}, "")
		require.NoError(t, err, "Expected no error reading jobs")
		require.Len(t, jobs, 2, "Expected one job per file")

		assert.Equal(t, "guide", jobs[0].Document.Title, "Expected title from file name")
		assert.Equal(t, model.FormatMarkdown, jobs[0].Document.Format, "Expected markdown format")
		assert.Equal(t, markdownPath, jobs[0].Document.Source, "Expected path as source")
		assert.NotEmpty(t, jobs[0].Document.Headings(), "Expected markdown headings to be detected")

		assert.Equal(t, "notes", jobs[1].Document.Title, "Expected title from file name")
		assert.Equal(t, model.FormatText, jobs[1].Document.Format, "Expected text format")
		assert.Nil(t, jobs[1].Analysis, "Expected no analysis")
		assert.NotEqual(t, jobs[0].Document.ID, jobs[1].Document.ID, "Expected distinct document ids")
	})

	t.Run("Valid call with explicit source", func(t *testing.T) {
		jobs, err := readJobs(convert.DefaultRegistry(), []string{textPath}, "import")
		require.NoError(t, err, "Expected no error reading jobs")
		assert.Equal(t, "import", jobs[0].Document.Source, "Expected explicit source")
	})

	t.Run("Invalid call with missing file", func(t *testing.T) {
		_, err := readJobs(convert.DefaultRegistry(), []string{filepath.Join(dir, "missing.md")}, "")
		assert.Error(t, err, "Expected error for missing file")
	})
}
