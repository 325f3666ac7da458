package trimet

// Upstream responses arrive wrapped in a resultSet envelope. Optional fields
// are pointers so a missing field is distinguishable from a zero value;
// sentinel substitution happens at normalization time, not here.
type resultSet struct {
	ResultSet struct {
		Arrival       []Arrival       `json:"arrival"`
		BlockPosition []BlockPosition `json:"blockPosition"`
		Location      []Location      `json:"location"`
	} `json:"resultSet"`
}

// Arrival is a raw upstream arrival record for a stop.
type Arrival struct {
	Route      int    `json:"route"`
	Status     string `json:"status"`
	Estimated  *int64 `json:"estimated"`
	Scheduled  *int64 `json:"scheduled"`
	FullSign   string `json:"fullSign"`
	ShortSign  string `json:"shortSign"`
	RouteColor string `json:"routeColor"`
}

// BlockPosition is a live vehicle position report, keyed by route number,
// with the vehicle's distance from the queried stop in feet.
type BlockPosition struct {
	RouteNumber int `json:"routeNumber"`
	Feet        int `json:"feet"`
}

// Location is a raw upstream stop listing entry.
type Location struct {
	ID             *int     `json:"locid"`
	Description    string   `json:"desc"`
	Direction      string   `json:"dir"`
	Lng            *float64 `json:"lng"`
	Lat            *float64 `json:"lat"`
	MetersDistance *float64 `json:"metersDistance"`
}
