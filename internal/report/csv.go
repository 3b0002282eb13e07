// Package report writes the tabular artifacts of each analysis run: summary
// CSV files on disk and a human-readable recap in the log.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/MinterGMT/restaking-research-visuals/internal/concentration"
)

// Row pairs one analysis group with its concentration summary.
type Row struct {
	Group   string
	Summary concentration.Summary
}

var operatorHeader = []string{"Group", "Number of Operators", "Total Delegated USD", "HHI", "Gini Coefficient"}

// The AVS table keeps the (Proxy) qualifiers of the thesis: delegated USD
// stands in for each AVS's dedicated security budget, which is not directly
// observable on-chain.
var avsHeader = []string{"Market", "Number of Operators", "Total Delegated USD (Proxy)", "HHI (Proxy)", "Gini (Proxy)"}

// WriteOperatorSummaryCSV writes the per-protocol concentration table of the
// operator market analysis.
func WriteOperatorSummaryCSV(path string, rows []Row) error {
	return writeSummaryCSV(path, operatorHeader, rows)
}

// WriteAVSSummaryCSV writes the per-AVS concentration table.
func WriteAVSSummaryCSV(path string, rows []Row) error {
	return writeSummaryCSV(path, avsHeader, rows)
}

func writeSummaryCSV(path string, header []string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Group,
			strconv.Itoa(row.Summary.Entities),
			FormatUSD(row.Summary.TotalStake),
			FormatHHI(row.Summary.HHI),
			FormatGini(row.Summary.Gini),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// ReadAVSSummaryCSV loads a previously written AVS summary table. Used by
// the chart command when the database holds no summaries, so the comparison
// can be re-rendered from the CSV artifact alone.
func ReadAVSSummaryCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse summary file %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("summary file %s is empty", path)
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < 5 {
			return nil, fmt.Errorf("summary file %s has a short record: %v", path, record)
		}

		entities, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, fmt.Errorf("bad entity count %q: %w", record[1], err)
		}
		total, err := ParseAmount(record[2])
		if err != nil {
			return nil, fmt.Errorf("bad total %q: %w", record[2], err)
		}
		hhi, err := ParseAmount(record[3])
		if err != nil {
			return nil, fmt.Errorf("bad HHI %q: %w", record[3], err)
		}
		gini, err := ParseGini(record[4])
		if err != nil {
			return nil, fmt.Errorf("bad Gini %q: %w", record[4], err)
		}

		rows = append(rows, Row{
			Group: record[0],
			Summary: concentration.Summary{
				Entities:   entities,
				TotalStake: total,
				HHI:        hhi,
				Gini:       gini,
			},
		})
	}

	return rows, nil
}

// LogSummaryTable prints the final recap of an analysis run.
func LogSummaryTable(ctx context.Context, title string, rows []Row) {
	logger := log.Ctx(ctx)
	logger.Info().Msgf("===== %s =====", title)
	for _, row := range rows {
		logger.Info().
			Str("group", row.Group).
			Int("entities", row.Summary.Entities).
			Str("total_stake", FormatUSD(row.Summary.TotalStake)).
			Str("hhi", FormatHHI(row.Summary.HHI)).
			Str("gini", FormatGini(row.Summary.Gini)).
			Msg("concentration summary")
	}
}
