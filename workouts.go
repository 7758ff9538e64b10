package garth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Workout is one row of the workout list.
type Workout struct {
	WorkoutID   int64  `json:"workoutId"`
	WorkoutName string `json:"workoutName"`
	UpdateDate  string `json:"updateDate"`
	SportType   struct {
		SportTypeKey string `json:"sportTypeKey"`
	} `json:"sportType"`
}

// Workouts lists stored workouts.
func (c *Client) Workouts(ctx context.Context, start, limit int) ([]Workout, error) {
	s, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	params := url.Values{
		"start": {strconv.Itoa(start)},
		"limit": {strconv.Itoa(limit)},
	}
	data, err := s.Get(ctx, "/workout-service/workouts", params)
	if err != nil {
		return nil, err
	}
	var workouts []Workout
	if data != nil {
		if err := json.Unmarshal(data, &workouts); err != nil {
			return nil, ErrParse("invalid workout list response", err)
		}
	}
	return workouts, nil
}

// Workout fetches the full definition of one workout.
func (c *Client) Workout(ctx context.Context, id int64) (json.RawMessage, error) {
	s, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, fmt.Sprintf("/workout-service/workout/%d", id), nil)
}
