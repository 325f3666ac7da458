// Package trimet is a thin client for the TriMet developer API. Every call
// is a single GET with a bounded timeout and no retries; the caller decides
// what a failure means.
package trimet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// The client backs a long-lived polling loop as well as synchronous request
// handling, so requests must never hang on the transport default.
const defaultTimeout = 10 * time.Second

const arrivalsWindowMinutes = 60

// ErrStopNotFound is returned when a nearest-stop query matches nothing
// within the requested radius.
var ErrStopNotFound = errors.New("no stop found within radius")

// TransportError covers everything that keeps a response from being usable:
// the upstream being unreachable, a non-2xx status, or a malformed body.
type TransportError struct {
	Status int
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("trimet: request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("trimet: request to %s returned HTTP %d", e.URL, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

type Client struct {
	appID      string
	baseURL    string
	httpClient *http.Client
}

func NewClient(appID, baseURL string) *Client {
	return &Client{
		appID:      appID,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Arrivals returns the raw upcoming arrivals for a stop over the next hour.
func (c *Client) Arrivals(ctx context.Context, stopID int) ([]Arrival, error) {
	rs, err := c.arrivalsPayload(ctx, stopID)
	if err != nil {
		return nil, err
	}
	return rs.ResultSet.Arrival, nil
}

// VehiclePositions returns the live block positions reported alongside the
// arrivals for a stop. The upstream serves both from the same endpoint.
func (c *Client) VehiclePositions(ctx context.Context, stopID int) ([]BlockPosition, error) {
	rs, err := c.arrivalsPayload(ctx, stopID)
	if err != nil {
		return nil, err
	}
	return rs.ResultSet.BlockPosition, nil
}

// StopsInBBox returns every stop within the given bounding box, given as
// "minLon,minLat,maxLon,maxLat".
func (c *Client) StopsInBBox(ctx context.Context, bbox string) ([]Location, error) {
	q := url.Values{}
	q.Set("appID", c.appID)
	q.Set("bbox", bbox)
	q.Set("json", "true")

	var rs resultSet
	if err := c.get(ctx, "/ws/V1/stops", q, &rs); err != nil {
		return nil, err
	}
	return rs.ResultSet.Location, nil
}

// NearestStop returns the single closest stop to lat,lon within radiusMeters,
// or ErrStopNotFound when the result list is empty.
func (c *Client) NearestStop(ctx context.Context, lat, lon float64, radiusMeters int) (Location, error) {
	q := url.Values{}
	q.Set("appID", c.appID)
	q.Set("ll", formatFloat(lon)+","+formatFloat(lat))
	q.Set("meters", strconv.Itoa(radiusMeters))
	q.Set("maxStops", "1")
	q.Set("json", "true")

	var rs resultSet
	if err := c.get(ctx, "/ws/V2/stops", q, &rs); err != nil {
		return Location{}, err
	}
	if len(rs.ResultSet.Location) == 0 {
		return Location{}, ErrStopNotFound
	}
	return rs.ResultSet.Location[0], nil
}

func (c *Client) arrivalsPayload(ctx context.Context, stopID int) (resultSet, error) {
	q := url.Values{}
	q.Set("locIDs", strconv.Itoa(stopID))
	q.Set("appID", c.appID)
	q.Set("showPosition", "true")
	q.Set("minutes", strconv.Itoa(arrivalsWindowMinutes))

	var rs resultSet
	err := c.get(ctx, "/ws/v2/arrivals", q, &rs)
	return rs, err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out *resultSet) error {
	reqURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &TransportError{URL: reqURL, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Status: resp.StatusCode, URL: reqURL}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{URL: reqURL, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
