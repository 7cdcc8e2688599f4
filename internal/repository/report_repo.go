package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ReportRepository aggregates over delivered orders only.
type ReportRepository interface {
	Revenue(ctx context.Context) (*domain.RevenueReport, error)
	TopProducts(ctx context.Context, limit int64) ([]domain.TopProduct, error)
}

type reportRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewReportRepository(pool *pgxpool.Pool) ReportRepository {
	return &reportRepo{
		pool:   pool,
		tracer: otel.Tracer("repository/report_repo"),
	}
}

func (r *reportRepo) Revenue(ctx context.Context) (*domain.RevenueReport, error) {
	ctx, span := r.tracer.Start(ctx, "ReportRepository.Revenue")
	defer span.End()

	query := `
		SELECT COALESCE(SUM(total), 0), COUNT(*)
		FROM orders
		WHERE status = 'delivered'
	`

	var report domain.RevenueReport
	if err := r.pool.QueryRow(ctx, query).Scan(&report.TotalRevenue, &report.OrderCount); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error computing revenue: %w", err)
	}

	return &report, nil
}

func (r *reportRepo) TopProducts(ctx context.Context, limit int64) ([]domain.TopProduct, error) {
	ctx, span := r.tracer.Start(ctx, "ReportRepository.TopProducts")
	defer span.End()

	query := `
		SELECT COALESCE(oi.product_id, 0), MAX(oi.product_name),
			SUM(oi.quantity), SUM(oi.quantity * oi.price_at_time_of_order)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status = 'delivered' AND oi.product_id IS NOT NULL
		GROUP BY oi.product_id
		ORDER BY SUM(oi.quantity) DESC, oi.product_id ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error computing top products: %w", err)
	}
	defer rows.Close()

	top := make([]domain.TopProduct, 0)
	for rows.Next() {
		var p domain.TopProduct
		if err := rows.Scan(&p.ProductID, &p.Name, &p.QuantitySold, &p.Revenue); err != nil {
			return nil, fmt.Errorf("error scanning top product: %w", err)
		}
		top = append(top, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return top, nil
}
