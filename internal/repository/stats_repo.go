package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type SalesDataRow struct {
	Period         string  `gorm:"column:period" json:"period"`
	SalesCount     int64   `gorm:"column:sales_count" json:"sales_count"`
	GrossRevenue   float64 `gorm:"column:gross_revenue" json:"gross_revenue"`
	RefundedAmount float64 `gorm:"column:refunded_amount" json:"refunded_amount"`
	UnitsSold      int64   `gorm:"column:units_sold" json:"units_sold"`
	UnitsReturned  int64   `gorm:"column:units_returned" json:"units_returned"`
}

// StatsRepository aggregates the sale history for reporting. Reads only; the
// numbers come from the sales table, not the ledger, so refunds show up as a
// separate column rather than negative revenue.
type StatsRepository interface {
	GetSalesStatistics(ctx context.Context, groupBy, startDate, endDate string) ([]SalesDataRow, error)
}

type statsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) GetSalesStatistics(ctx context.Context, groupBy, startDate, endDate string) ([]SalesDataRow, error) {
	query := `
		SELECT
			TO_CHAR(DATE_TRUNC($1, s.created_at), 'YYYY-MM-DD') AS period,
			COUNT(DISTINCT s.id) AS sales_count,
			COALESCE(SUM(CASE WHEN NOT si.is_free THEN si.quantity * si.unit_price ELSE 0 END), 0) AS gross_revenue,
			COALESCE(SUM(CASE WHEN NOT si.is_free THEN si.returned_quantity * si.unit_price ELSE 0 END), 0) AS refunded_amount,
			COALESCE(SUM(si.quantity), 0) AS units_sold,
			COALESCE(SUM(si.returned_quantity), 0) AS units_returned
		FROM sales s
		JOIN sale_items si ON si.sale_id = s.id
		WHERE s.created_at >= $2::timestamptz
		  AND s.created_at <= $3::timestamptz
		GROUP BY DATE_TRUNC($1, s.created_at)
		ORDER BY period
	`

	var rows []SalesDataRow
	if err := r.db.WithContext(ctx).Raw(query, groupBy, startDate, endDate).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query sales statistics: %w", err)
	}

	return rows, nil
}
