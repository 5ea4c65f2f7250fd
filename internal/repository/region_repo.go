package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tariff/internal/models"
)

// RegionRepository handles region and country lookups. The engine only ever
// reads these tables.
type RegionRepository struct {
	pool *pgxpool.Pool
}

// NewRegionRepository creates a new region repository.
func NewRegionRepository(pool *pgxpool.Pool) *RegionRepository {
	return &RegionRepository{pool: pool}
}

// FindRegionForCountry returns the region owning a country code, or nil if
// the country is unknown.
func (r *RegionRepository) FindRegionForCountry(ctx context.Context, countryCode string) (*uuid.UUID, error) {
	query := `
		SELECT region_id
		FROM countries
		WHERE code = $1`

	var regionID uuid.UUID
	err := r.pool.QueryRow(ctx, query, countryCode).Scan(&regionID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query country region: %w", err)
	}

	return &regionID, nil
}

// List retrieves all regions.
func (r *RegionRepository) List(ctx context.Context) ([]*models.Region, error) {
	query := `
		SELECT id, code, name, created_at
		FROM regions
		ORDER BY code`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query regions: %w", err)
	}
	defer rows.Close()

	var regions []*models.Region
	for rows.Next() {
		var region models.Region
		if err := rows.Scan(&region.ID, &region.Code, &region.Name, &region.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		regions = append(regions, &region)
	}

	return regions, rows.Err()
}

// ListCountries retrieves the countries belonging to a region.
func (r *RegionRepository) ListCountries(ctx context.Context, regionID uuid.UUID) ([]*models.Country, error) {
	query := `
		SELECT code, name, region_id, created_at
		FROM countries
		WHERE region_id = $1
		ORDER BY code`

	rows, err := r.pool.Query(ctx, query, regionID)
	if err != nil {
		return nil, fmt.Errorf("query countries: %w", err)
	}
	defer rows.Close()

	var countries []*models.Country
	for rows.Next() {
		var c models.Country
		if err := rows.Scan(&c.Code, &c.Name, &c.RegionID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		countries = append(countries, &c)
	}

	return countries, rows.Err()
}
