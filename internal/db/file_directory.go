package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"groundwatch/internal/types"
)

// FileStationDirectory loads the station directory from a JSON file. Used
// for local development and environments without the directory database.
type FileStationDirectory struct {
	path string
}

// NewFileStationDirectory creates a directory reading from path on each
// call; the engine's static cache tier keeps reads infrequent.
func NewFileStationDirectory(path string) *FileStationDirectory {
	return &FileStationDirectory{path: path}
}

// Stations reads and decodes the station list.
func (d *FileStationDirectory) Stations(_ context.Context) ([]types.StationRecord, error) {
	b, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("reading station directory file: %w", err)
	}
	var stations []types.StationRecord
	if err := json.Unmarshal(b, &stations); err != nil {
		return nil, fmt.Errorf("decoding station directory file: %w", err)
	}
	return stations, nil
}
