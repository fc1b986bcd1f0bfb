package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/models"
)

// CalculationStorage implements interfaces.CalculationStorage.
// Monetary values are stored as decimal strings so they round-trip exactly.
type CalculationStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewCalculationStorage creates a new CalculationStorage instance
func NewCalculationStorage(db *SQLiteDB, logger arbor.ILogger) *CalculationStorage {
	return &CalculationStorage{
		db:     db,
		logger: logger,
	}
}

const calculationColumns = `id, lead_id, success, scheme, calculation_type, starting_band, finishing_band,
	floor_area_band, pre_main_heat_source, total_abs, total_eco_value, cost_savings, eco_value,
	rate_used, innovation_multiplier, matched_row, created_at`

const measureColumns = `position, measure_type, measure_variant, measure_category, post_heat_source,
	percentage_treated, is_innovation, abs_value, pps_points, eco_value, cost_savings_base,
	matched_row, error, criteria`

// Save writes the calculation and all of its measures in one transaction
func (s *CalculationStorage) Save(ctx context.Context, record *models.CalculationRecord) error {
	tx, err := s.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sum := record.Summary
	_, err = tx.ExecContext(ctx,
		`INSERT INTO calculations (`+calculationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.LeadID, record.Success, sum.Scheme, string(sum.CalculationType),
		sum.StartingBand, sum.FinishingBand, sum.FloorAreaBand, sum.PreMainHeatSource,
		nullDecimal(sum.TotalABS), nullDecimal(sum.TotalECOValue), nullDecimal(sum.CostSavings), nullDecimal(sum.ECOValue),
		sum.RateUsed.String(), nullDecimal(sum.InnovationMultiplier), sum.MatchedRow, record.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert calculation %s: %w", record.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO calculation_measures (calculation_id, `+measureColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare measure insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range record.Measures {
		criteria := ""
		if len(m.Criteria) > 0 {
			raw, err := json.Marshal(m.Criteria)
			if err != nil {
				return fmt.Errorf("failed to encode criteria: %w", err)
			}
			criteria = string(raw)
		}

		_, err := stmt.ExecContext(ctx,
			record.ID, i, m.MeasureType, m.MeasureVariant, m.MeasureCategory, m.PostHeatSource,
			m.PercentageTreated.String(), m.IsInnovation, m.ABSValue.String(), m.PPSPoints.String(),
			m.ECOValue.String(), m.CostSavingsBase.String(), m.MatchedRow, m.Error, criteria,
		)
		if err != nil {
			return fmt.Errorf("failed to insert measure %d of %s: %w", i, record.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit calculation %s: %w", record.ID, err)
	}

	s.logger.Debug().Str("calculation_id", record.ID).Int("measures", len(record.Measures)).Msg("Calculation saved")
	return nil
}

// Get returns a calculation with its measures
func (s *CalculationStorage) Get(ctx context.Context, id string) (*models.CalculationRecord, error) {
	row := s.db.DB().QueryRowContext(ctx, `SELECT `+calculationColumns+` FROM calculations WHERE id = ?`, id)
	record, err := scanCalculation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCalculationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calculation %s: %w", id, err)
	}

	if record.Measures, err = s.loadMeasures(ctx, id); err != nil {
		return nil, err
	}
	return record, nil
}

// ListByLead returns a lead's calculations, newest first
func (s *CalculationStorage) ListByLead(ctx context.Context, leadID string) ([]*models.CalculationRecord, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT `+calculationColumns+` FROM calculations WHERE lead_id = ? ORDER BY created_at DESC, id`, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list calculations for lead %s: %w", leadID, err)
	}
	defer rows.Close()

	records := make([]*models.CalculationRecord, 0)
	for rows.Next() {
		record, err := scanCalculation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calculation: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, record := range records {
		if record.Measures, err = s.loadMeasures(ctx, record.ID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Delete removes a calculation and its measures
func (s *CalculationStorage) Delete(ctx context.Context, id string) error {
	tx, err := s.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM calculation_measures WHERE calculation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete measures of %s: %w", id, err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM calculations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete calculation %s: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", interfaces.ErrCalculationNotFound, id)
	}

	return tx.Commit()
}

// Ping checks the database connection
func (s *CalculationStorage) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database
func (s *CalculationStorage) Close() error {
	return s.db.Close()
}

func (s *CalculationStorage) loadMeasures(ctx context.Context, calculationID string) ([]models.MeasureResult, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT `+measureColumns+` FROM calculation_measures WHERE calculation_id = ? ORDER BY position`, calculationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load measures of %s: %w", calculationID, err)
	}
	defer rows.Close()

	measures := make([]models.MeasureResult, 0)
	for rows.Next() {
		var (
			m                                         models.MeasureResult
			position                                  int
			pct, absValue, pps, ecoValue, costSavings string
			criteria                                  string
		)
		err := rows.Scan(&position, &m.MeasureType, &m.MeasureVariant, &m.MeasureCategory, &m.PostHeatSource,
			&pct, &m.IsInnovation, &absValue, &pps, &ecoValue, &costSavings, &m.MatchedRow, &m.Error, &criteria)
		if err != nil {
			return nil, fmt.Errorf("failed to scan measure: %w", err)
		}

		for _, f := range []struct {
			dst *decimal.Decimal
			src string
		}{
			{&m.PercentageTreated, pct},
			{&m.ABSValue, absValue},
			{&m.PPSPoints, pps},
			{&m.ECOValue, ecoValue},
			{&m.CostSavingsBase, costSavings},
		} {
			if *f.dst, err = decimal.NewFromString(f.src); err != nil {
				return nil, fmt.Errorf("invalid stored amount %q: %w", f.src, err)
			}
		}

		if criteria != "" {
			if err := json.Unmarshal([]byte(criteria), &m.Criteria); err != nil {
				return nil, fmt.Errorf("invalid stored criteria: %w", err)
			}
		}
		measures = append(measures, m)
	}
	return measures, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCalculation(row rowScanner) (*models.CalculationRecord, error) {
	var (
		record                                                models.CalculationRecord
		calcType, rateUsed                                    string
		totalABS, totalECO, costSavings, ecoValue, multiplier sql.NullString
		createdAt                                             int64
	)
	sum := &record.Summary
	err := row.Scan(&record.ID, &record.LeadID, &record.Success, &sum.Scheme, &calcType,
		&sum.StartingBand, &sum.FinishingBand, &sum.FloorAreaBand, &sum.PreMainHeatSource,
		&totalABS, &totalECO, &costSavings, &ecoValue, &rateUsed, &multiplier, &sum.MatchedRow, &createdAt)
	if err != nil {
		return nil, err
	}

	sum.CalculationType = models.CalculationType(calcType)
	record.CreatedAt = time.Unix(0, createdAt).UTC()

	if sum.RateUsed, err = decimal.NewFromString(rateUsed); err != nil {
		return nil, fmt.Errorf("invalid stored rate %q: %w", rateUsed, err)
	}
	for _, f := range []struct {
		dst **decimal.Decimal
		src sql.NullString
	}{
		{&sum.TotalABS, totalABS},
		{&sum.TotalECOValue, totalECO},
		{&sum.CostSavings, costSavings},
		{&sum.ECOValue, ecoValue},
		{&sum.InnovationMultiplier, multiplier},
	} {
		if *f.dst, err = parseNullDecimal(f.src); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", s.String, err)
	}
	return &d, nil
}
