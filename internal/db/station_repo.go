package db

import (
	"context"
	"fmt"

	"groundwatch/internal/types"
)

// stationColumns is the standard column set for station queries.
const stationColumns = `s.id, s.name, s.lat, s.lon, s.well_type, s.well_depth_m, s.aquifer_type`

// StationRepository reads the station directory from PostgreSQL. The
// directory is reference data owned by an external ingestion process; this
// repository never writes it.
type StationRepository struct {
	db DBTX
}

// NewStationRepository creates a StationRepository backed by the given
// connection (pool or transaction).
func NewStationRepository(db DBTX) *StationRepository {
	return &StationRepository{db: db}
}

// Stations returns all station records in a stable order. The engine caches
// the result under the static cache tier, so this is called at most once per
// TTL window per process.
func (r *StationRepository) Stations(ctx context.Context) ([]types.StationRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+stationColumns+` FROM stations s ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("querying stations: %w", err)
	}
	defer rows.Close()

	var stations []types.StationRecord
	for rows.Next() {
		var s types.StationRecord
		if err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lon, &s.WellType, &s.WellDepthM, &s.AquiferType); err != nil {
			return nil, fmt.Errorf("scanning station row: %w", err)
		}
		stations = append(stations, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating station rows: %w", err)
	}
	return stations, nil
}
