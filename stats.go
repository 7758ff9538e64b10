package garth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// The usersummary stats endpoints cap each request at 28 days; longer
// ranges are fetched in chunks.
const statsMaxChunk = 28

// DailySteps is one day of the steps series.
type DailySteps struct {
	CalendarDate string `json:"calendarDate"`
	Values       struct {
		TotalSteps    int     `json:"totalSteps"`
		TotalDistance float64 `json:"totalDistance"`
		StepGoal      int     `json:"stepGoal"`
	} `json:"values"`
}

// DailyStress is one day of the stress series.
type DailyStress struct {
	CalendarDate string `json:"calendarDate"`
	Values       struct {
		HighStressDuration   int `json:"highStressDuration"`
		LowStressDuration    int `json:"lowStressDuration"`
		OverallStressLevel   int `json:"overallStressLevel"`
		RestStressDuration   int `json:"restStressDuration"`
		MediumStressDuration int `json:"mediumStressDuration"`
	} `json:"values"`
}

// DailyIntensityMinutes is one day of the intensity-minutes series.
type DailyIntensityMinutes struct {
	CalendarDate string `json:"calendarDate"`
	Values       struct {
		ModerateValue int `json:"moderateValue"`
		VigorousValue int `json:"vigorousValue"`
	} `json:"values"`
}

// DailyHydration is one day of the hydration series.
type DailyHydration struct {
	CalendarDate string `json:"calendarDate"`
	Values       struct {
		ValueInML float64 `json:"valueInML"`
		GoalInML  float64 `json:"goalInML"`
	} `json:"values"`
}

// DailySteps returns the steps series for the `days` days ending at
// `end`, oldest first.
func (c *Client) DailySteps(ctx context.Context, end time.Time, days int) ([]DailySteps, error) {
	return statsSeries[DailySteps](ctx, c, "/usersummary-service/stats/steps/daily/%s/%s", end, days)
}

// DailyStress returns the stress series, oldest first.
func (c *Client) DailyStress(ctx context.Context, end time.Time, days int) ([]DailyStress, error) {
	return statsSeries[DailyStress](ctx, c, "/usersummary-service/stats/stress/daily/%s/%s", end, days)
}

// DailyIntensityMinutes returns the intensity-minutes series, oldest first.
func (c *Client) DailyIntensityMinutes(ctx context.Context, end time.Time, days int) ([]DailyIntensityMinutes, error) {
	return statsSeries[DailyIntensityMinutes](ctx, c, "/usersummary-service/stats/im/daily/%s/%s", end, days)
}

// DailyHydration returns the hydration series, oldest first.
func (c *Client) DailyHydration(ctx context.Context, end time.Time, days int) ([]DailyHydration, error) {
	return statsSeries[DailyHydration](ctx, c, "/usersummary-service/stats/hydration/daily/%s/%s", end, days)
}

// statsSeries fetches a date-range stats endpoint, splitting ranges
// longer than the per-request cap into sequential chunks and stitching
// the results together oldest-first.
func statsSeries[T any](ctx context.Context, c *Client, pathTemplate string, end time.Time, days int) ([]T, error) {
	s, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	if days < 1 {
		return nil, ErrUsage("days must be at least 1")
	}

	var out []T
	for days > 0 {
		chunk := days
		if chunk > statsMaxChunk {
			chunk = statsMaxChunk
		}
		start := end.AddDate(0, 0, -(chunk - 1))
		path := fmt.Sprintf(pathTemplate, start.Format(dateLayout), end.Format(dateLayout))

		data, err := s.Get(ctx, path, nil)
		if err != nil {
			return nil, err
		}
		var page []T
		if data != nil {
			if err := json.Unmarshal(data, &page); err != nil {
				return nil, ErrParse("invalid stats response for "+path, err)
			}
		}
		out = append(page, out...)

		end = start.AddDate(0, 0, -1)
		days -= chunk
	}
	return out, nil
}
