package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

// Output file names within the loader's directory.
const (
	DatasetFile  = "dataset.csv"
	SummaryFile  = "summary.json"
	WorkbookFile = "report.xlsx"
)

// FileLoader writes each report into a directory, replacing the previous one.
// It implements pipeline.Loader.
type FileLoader struct {
	dir      string
	opts     Options
	workbook bool
	logger   *slog.Logger
}

// NewFileLoader creates a loader writing into dir.
func NewFileLoader(dir string, opts Options, workbook bool, logger *slog.Logger) *FileLoader {
	return &FileLoader{dir: dir, opts: opts, workbook: workbook, logger: logger}
}

type output struct {
	name  string
	write func(io.Writer) error
}

// Load writes the dataset, the summary and, when enabled, the workbook.
// Each file is written to a temporary name and renamed into place.
func (l *FileLoader) Load(ctx context.Context, rep domain.Report) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	outputs := []output{
		{DatasetFile, func(w io.Writer) error { return WriteDataset(w, rep.Dataset, l.opts) }},
		{SummaryFile, func(w io.Writer) error { return WriteSummary(w, rep) }},
	}
	if l.workbook {
		outputs = append(outputs, output{WorkbookFile, func(w io.Writer) error { return WriteWorkbook(w, rep) }})
	}

	for _, out := range outputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(l.dir, out.name)
		if err := writeAtomic(path, out.write); err != nil {
			return err
		}
		l.logger.Info("output written", "path", path, "run_id", rep.RunID)
	}
	return nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
