package providers

import "github.com/trilive/trilive-api/trimet"

// Sentinels for fields the upstream may omit.
const (
	missingStopID     = -1
	missingCoord      = -1.0
	defaultDistMeters = 10000
)

// Route is one upcoming arrival of a transit line at a stop. JSON field
// names are part of the public response contract.
type Route struct {
	StopID     int    `json:"stop_id"`
	RouteID    int    `json:"route_id"`
	RouteName  string `json:"route_name"`
	Status     string `json:"status"`
	Eta        string `json:"eta"`
	RouteColor string `json:"routeColor"`
}

// Station is a stop as reported by the upstream, relative to a query point.
type Station struct {
	StopID int     `json:"stop_id"`
	Name   string  `json:"name"`
	Dir    string  `json:"dir"`
	Lon    float64 `json:"lon"`
	Lat    float64 `json:"lat"`
	Dist   int     `json:"dist"`
}

// Stop is a persistent stop catalog row.
type Stop struct {
	ID   int     `json:"id" db:"id"`
	Name string  `json:"name" db:"name"`
	Lat  float64 `json:"lat" db:"lat"`
	Lon  float64 `json:"lon" db:"lon"`
}

// stationFromLocation maps a raw upstream location onto a Station, filling
// sentinels for anything the upstream left out.
func stationFromLocation(loc trimet.Location) Station {
	station := Station{
		StopID: missingStopID,
		Name:   loc.Description,
		Dir:    loc.Direction,
		Lon:    missingCoord,
		Lat:    missingCoord,
		Dist:   defaultDistMeters,
	}
	if loc.ID != nil {
		station.StopID = *loc.ID
	}
	if loc.Lng != nil {
		station.Lon = *loc.Lng
	}
	if loc.Lat != nil {
		station.Lat = *loc.Lat
	}
	if loc.MetersDistance != nil {
		station.Dist = int(*loc.MetersDistance)
	}
	return station
}
