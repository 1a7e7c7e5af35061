package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"ragqa/internal/domain"
)

// LoadOptions controls how a tabular file becomes documents.
type LoadOptions struct {
	Sheet     string
	HasHeader bool
	Logger    *slog.Logger
}

// Load reads the first column of an .xlsx, .csv or .tsv file into a Store.
// Rows keep file order; rows with a blank first cell are skipped.
func Load(path string, opts LoadOptions) (*Store, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path, opts.Sheet)
	case ".csv":
		rows, err = readDelimited(path, ',')
	case ".tsv":
		rows, err = readDelimited(path, '\t')
	default:
		return nil, fmt.Errorf("%w: unsupported corpus format %q", domain.ErrCorpusLoad, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrCorpusLoad, path, err)
	}
	if opts.HasHeader && len(rows) > 0 {
		rows = rows[1:]
	}
	texts := make([]string, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			skipped++
			continue
		}
		texts = append(texts, row[0])
	}
	if opts.Logger != nil {
		opts.Logger.Info("Loaded corpus", slog.String("path", path), slog.Int("documents", len(texts)), slog.Int("skipped_rows", skipped))
	}
	return NewStore(texts), nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	return f.GetRows(sheet)
}

func readDelimited(path string, sep rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = sep
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
