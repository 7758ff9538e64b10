package garth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// DailySleep is one day of the sleep-duration series.
type DailySleep struct {
	CalendarDate string `json:"calendarDate"`
	Values       struct {
		TotalSleepSeconds int `json:"totalSleepSeconds"`
		NapTimeSeconds    int `json:"napTimeSeconds"`
	} `json:"values"`
}

// DailySleep returns the sleep-duration series, oldest first.
func (c *Client) DailySleep(ctx context.Context, end time.Time, days int) ([]DailySleep, error) {
	return statsSeries[DailySleep](ctx, c, "/wellness-service/stats/sleep/daily/%s/%s", end, days)
}

// SleepData fetches the detailed sleep document for one night. The
// endpoint is keyed by display name, so it requires a successful
// profile fetch at login.
func (c *Client) SleepData(ctx context.Context, date time.Time) (json.RawMessage, error) {
	s, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	name, err := c.requireDisplayName()
	if err != nil {
		return nil, err
	}
	params := url.Values{
		"date":                  {date.Format(dateLayout)},
		"nonSleepBufferMinutes": {"60"},
	}
	path := fmt.Sprintf("/wellness-service/wellness/dailySleepData/%s", url.PathEscape(name))
	return s.Get(ctx, path, params)
}

// HRVData fetches the heart-rate-variability document for one day.
func (c *Client) HRVData(ctx context.Context, date time.Time) (json.RawMessage, error) {
	s, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, "/hrv-service/hrv/"+date.Format(dateLayout), nil)
}
