// Command textdump writes the text of statement PDFs to files, one per page.
// The dumps are used to build parser fixtures without checking in real statements.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/redcoatwright/privatebooks/pkg/extractor/statement"
	"github.com/redcoatwright/privatebooks/pkg/logging"
)

const dumpDir = "tests/data/dump"

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\s]`)
	underscores = regexp.MustCompile(`_+`)
)

func main() {
	logger := logging.Setup(logging.DefaultConfig())

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: textdump <statement.pdf>...")
		os.Exit(2)
	}

	if err := os.MkdirAll(dumpDir, 0o755); err != nil {
		logger.Error("failed to create dump directory", "error", err)
		os.Exit(1)
	}

	totalDumped := 0
	for _, path := range os.Args[1:] {
		pages, err := statement.ReadPDFPages(path)
		if err != nil {
			logger.Error("failed to read statement", "file", path, "error", err)
			continue
		}

		count, err := writePages(dumpDir, path, pages, logger)
		if err != nil {
			logger.Error("failed to dump statement", "file", path, "error", err)
			continue
		}
		totalDumped += count
	}

	logger.Info("text dump complete", "pages_dumped", totalDumped, "directory", dumpDir)
}

// writePages writes each page to dir as <source>_p<N>.txt. Existing files are kept.
func writePages(dir, source string, pages []string, logger *slog.Logger) (int, error) {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	count := 0
	for i, text := range pages {
		filename := sanitizeFilename(fmt.Sprintf("%s_p%d", base, i+1)) + ".txt"
		filePath := filepath.Join(dir, filename)

		if _, err := os.Stat(filePath); err == nil {
			logger.Debug("file already exists, skipping", "file", filename)
			continue
		}

		if err := os.WriteFile(filePath, []byte(text), 0o644); err != nil {
			return count, fmt.Errorf("writing %s: %w", filename, err)
		}

		logger.Info("dumped page",
			"file", filename,
			"transaction_lines", countTransactionLines(text),
		)
		count++
	}
	return count, nil
}

func countTransactionLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if statement.IsTransactionLine(line) {
			n++
		}
	}
	return n
}

func sanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	name = underscores.ReplaceAllString(name, "_")

	name = strings.Trim(name, "_")
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}
