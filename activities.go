package garth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
)

// Activity is one row of the activity list.
type Activity struct {
	ActivityID     int64   `json:"activityId"`
	ActivityName   string  `json:"activityName"`
	StartTimeLocal string  `json:"startTimeLocal"`
	Distance       float64 `json:"distance"`
	Duration       float64 `json:"duration"`
	ActivityType   struct {
		TypeKey string `json:"typeKey"`
	} `json:"activityType"`
}

// Activities lists activities, newest first. start is the zero-based
// offset into the list.
func (c *Client) Activities(ctx context.Context, start, limit int) ([]Activity, error) {
	s, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	params := url.Values{
		"start": {strconv.Itoa(start)},
		"limit": {strconv.Itoa(limit)},
	}
	data, err := s.Get(ctx, "/activitylist-service/activities/search/activities", params)
	if err != nil {
		return nil, err
	}
	var activities []Activity
	if data != nil {
		if err := json.Unmarshal(data, &activities); err != nil {
			return nil, ErrParse("invalid activity list response", err)
		}
	}
	return activities, nil
}

// Activity fetches the full detail document for one activity.
func (c *Client) Activity(ctx context.Context, id int64) (json.RawMessage, error) {
	s, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, fmt.Sprintf("/activity-service/activity/%d", id), nil)
}

// DownloadActivity fetches the original recording as raw bytes (a zip
// containing the FIT file).
func (c *Client) DownloadActivity(ctx context.Context, id int64) ([]byte, error) {
	s, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	return s.Download(ctx, fmt.Sprintf("/download-service/files/activity/%d", id))
}

// UploadActivity uploads a recording (FIT, GPX or TCX).
func (c *Client) UploadActivity(ctx context.Context, filename string, r io.Reader) (json.RawMessage, error) {
	s, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	return s.Upload(ctx, "/upload-service/upload", filename, r)
}
