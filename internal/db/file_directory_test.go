package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStationDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.json")
	content := `[
		{"id": "ST-001", "name": "Alipur piezometer", "lat": 28.62, "lon": 77.21, "well_type": "piezometer", "well_depth_m": 60, "aquifer_type": "alluvial"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	d := NewFileStationDirectory(path)
	stations, err := d.Stations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "ST-001", stations[0].ID)
	assert.Equal(t, 60.0, stations[0].WellDepthM)
}

func TestFileStationDirectoryMissingFile(t *testing.T) {
	d := NewFileStationDirectory(filepath.Join(t.TempDir(), "absent.json"))
	_, err := d.Stations(context.Background())
	assert.ErrorContains(t, err, "reading station directory file")
}

func TestFileStationDirectoryMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	d := NewFileStationDirectory(path)
	_, err := d.Stations(context.Background())
	assert.ErrorContains(t, err, "decoding station directory file")
}
