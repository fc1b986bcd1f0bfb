// Package matrix loads the rate matrix reference tables from seed files.
package matrix

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/models"
)

// TableImport reports what happened to one table
type TableImport struct {
	Table   models.MatrixTable `json:"table"`
	File    string             `json:"file,omitempty"`
	Rows    int                `json:"rows"`
	Skipped bool               `json:"skipped"`
}

// ImportSummary is the outcome of ImportDir
type ImportSummary struct {
	Dir    string        `json:"dir"`
	Tables []TableImport `json:"tables"`
}

// Importer replaces matrix tables from seed files named after each table
// (gbis_partial.csv, eco4_partial.toml, full_project.yaml, ...)
type Importer struct {
	loader interfaces.RateMatrixLoader
	logger arbor.ILogger
}

// NewImporter creates an importer writing through loader
func NewImporter(loader interfaces.RateMatrixLoader, logger arbor.ILogger) *Importer {
	return &Importer{
		loader: loader,
		logger: logger,
	}
}

type parsedTable struct {
	table   models.MatrixTable
	file    string
	partial []models.PartialScoreRow
	full    []models.FullProjectRow
}

// ImportDir parses every seed file in dir and then replaces the matching tables.
// Nothing is written unless all present files parse cleanly. Tables without a
// seed file keep their current rows.
func (i *Importer) ImportDir(ctx context.Context, dir string) (*ImportSummary, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("seed directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("seed path %s is not a directory", dir)
	}

	i.logger.Debug().Str("dir", dir).Msg("Loading rate matrix seed files")

	summary := &ImportSummary{Dir: dir}
	var parsed []parsedTable

	for _, table := range models.AllMatrixTables {
		file := findSeedFile(dir, table)
		if file == "" {
			i.logger.Warn().Str("dir", dir).Str("table", string(table)).Msg("No seed file found for matrix table, keeping existing rows")
			summary.Tables = append(summary.Tables, TableImport{Table: table, Skipped: true})
			continue
		}

		p, err := parseTable(table, file)
		if err != nil {
			i.logger.Error().Err(err).Str("file", file).Msg("Failed to parse matrix seed file")
			return nil, err
		}
		parsed = append(parsed, p)
	}

	for _, p := range parsed {
		var rows int
		if p.table == models.TableFullProject {
			rows = len(p.full)
			err = i.loader.ReplaceFullTable(ctx, p.full)
		} else {
			rows = len(p.partial)
			err = i.loader.ReplacePartialTable(ctx, p.table, p.partial)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", p.table, err)
		}

		i.logger.Info().Str("table", string(p.table)).Str("file", p.file).Int("rows", rows).Msg("Matrix table imported")
		summary.Tables = append(summary.Tables, TableImport{Table: p.table, File: p.file, Rows: rows})
	}

	return summary, nil
}

func parseTable(table models.MatrixTable, file string) (parsedTable, error) {
	seeds, err := readSeedFile(file)
	if err != nil {
		return parsedTable{}, err
	}

	p := parsedTable{table: table, file: file}
	if table == models.TableFullProject {
		p.full, err = toFullRows(seeds)
	} else {
		p.partial, err = toPartialRows(table, seeds)
	}
	if err != nil {
		return parsedTable{}, fmt.Errorf("%s: %w", file, err)
	}
	return p, nil
}
