package types

import "time"

// Location is a geographic point in decimal degrees.
type Location struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Observation is a single groundwater-depth measurement for a station, in
// meters below ground level. A larger depth means a deeper (more depleted)
// water table.
//
// After normalization a series of Observations is sorted non-decreasing by
// date, contains no two observations on the same calendar date, and every
// depth is finite and non-negative.
type Observation struct {
	Date  time.Time `json:"date"`
	Depth float64   `json:"depth_m"`
}

// RechargeEntry summarizes one year of seasonal recharge for a station.
// RechargeAmount equals PreMonsoonDepth - PostMonsoonDepth (the water table
// rises, i.e. depth shrinks, when the aquifer recharges during the monsoon).
type RechargeEntry struct {
	Year             int     `json:"year"`
	PreMonsoonDepth  float64 `json:"pre_monsoon_depth_m"`
	PostMonsoonDepth float64 `json:"post_monsoon_depth_m"`
	RechargeAmount   float64 `json:"recharge_m"`
}

// StationRecord is read-only reference data describing a monitoring well.
// It is owned by the external station directory; this service never writes it.
type StationRecord struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	WellType    string  `json:"well_type"`
	WellDepthM  float64 `json:"well_depth_m"`
	AquiferType string  `json:"aquifer_type"`
}

// StationData is the payload delivered by the upstream observation source
// for a single station: the raw historical series plus per-year recharge
// summaries. The series may be unsorted and contain duplicates; callers are
// expected to run it through the series normalizer.
type StationData struct {
	Observations []Observation   `json:"observations"`
	Recharge     []RechargeEntry `json:"recharge"`
}
