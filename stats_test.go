package garth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// statsClient wires a Client directly onto an apiFixture, skipping the
// login flow.
func statsClient(f *apiFixture, displayName string) *Client {
	return &Client{
		session:     f.session("", validOAuth2()),
		displayName: displayName,
	}
}

func TestDailyStepsSingleChunk(t *testing.T) {
	f := newAPIFixture(t)
	f.mux.HandleFunc("GET /usersummary-service/stats/steps/daily/{start}/{end}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-06-24", r.PathValue("start"))
		assert.Equal(t, "2025-06-30", r.PathValue("end"))
		fmt.Fprint(w, `[{"calendarDate":"2025-06-24","values":{"totalSteps":1000}},
			{"calendarDate":"2025-06-30","values":{"totalSteps":7000}}]`)
	})

	c := statsClient(f, "")
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	steps, err := c.DailySteps(context.Background(), end, 7)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "2025-06-24", steps[0].CalendarDate)
	assert.Equal(t, 1000, steps[0].Values.TotalSteps)
}

func TestDailyStepsChunksLongRanges(t *testing.T) {
	f := newAPIFixture(t)
	var mu sync.Mutex
	var ranges [][2]string
	f.mux.HandleFunc("GET /usersummary-service/stats/steps/daily/{start}/{end}", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ranges = append(ranges, [2]string{r.PathValue("start"), r.PathValue("end")})
		mu.Unlock()
		fmt.Fprintf(w, `[{"calendarDate":%q,"values":{"totalSteps":1}}]`, r.PathValue("start"))
	})

	c := statsClient(f, "")
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	steps, err := c.DailySteps(context.Background(), end, 35)
	require.NoError(t, err)

	// 35 days splits into a 28-day chunk ending at `end` and a 7-day
	// chunk right before it.
	require.Equal(t, [][2]string{
		{"2025-06-03", "2025-06-30"},
		{"2025-05-27", "2025-06-02"},
	}, ranges)

	// Results come back oldest first regardless of fetch order.
	require.Len(t, steps, 2)
	assert.Equal(t, "2025-05-27", steps[0].CalendarDate)
	assert.Equal(t, "2025-06-03", steps[1].CalendarDate)
}

func TestDailyStepsRejectsBadRange(t *testing.T) {
	f := newAPIFixture(t)
	c := statsClient(f, "")

	_, err := c.DailySteps(context.Background(), time.Now(), 0)
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, CodeUsage, e.Code)
}

func TestDailyStressSeries(t *testing.T) {
	f := newAPIFixture(t)
	f.mux.HandleFunc("GET /usersummary-service/stats/stress/daily/{start}/{end}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"calendarDate":"2025-06-30","values":{"overallStressLevel":31,"restStressDuration":3600}}]`)
	})

	c := statsClient(f, "")
	stress, err := c.DailyStress(context.Background(), time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), 1)
	require.NoError(t, err)
	require.Len(t, stress, 1)
	assert.Equal(t, 31, stress[0].Values.OverallStressLevel)
}

func TestSleepDataNeedsDisplayName(t *testing.T) {
	f := newAPIFixture(t)
	c := statsClient(f, "")

	_, err := c.SleepData(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestSleepData(t *testing.T) {
	f := newAPIFixture(t)
	f.mux.HandleFunc("GET /wellness-service/wellness/dailySleepData/{name}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice-dn", r.PathValue("name"))
		assert.Equal(t, "2025-06-29", r.URL.Query().Get("date"))
		assert.Equal(t, "60", r.URL.Query().Get("nonSleepBufferMinutes"))
		fmt.Fprint(w, `{"dailySleepDTO":{"sleepTimeSeconds":28800}}`)
	})

	c := statsClient(f, "alice-dn")
	data, err := c.SleepData(context.Background(), time.Date(2025, 6, 29, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, string(data), "sleepTimeSeconds")
}

func TestActivities(t *testing.T) {
	f := newAPIFixture(t)
	f.mux.HandleFunc("GET /activitylist-service/activities/search/activities", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("start"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[{"activityId":101,"activityName":"Morning Run","activityType":{"typeKey":"running"}},
			{"activityId":100,"activityName":"Evening Ride","activityType":{"typeKey":"cycling"}}]`)
	})

	c := statsClient(f, "")
	activities, err := c.Activities(context.Background(), 0, 2)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, int64(101), activities[0].ActivityID)
	assert.Equal(t, "running", activities[0].ActivityType.TypeKey)
}

func TestWorkouts(t *testing.T) {
	f := newAPIFixture(t)
	f.mux.HandleFunc("GET /workout-service/workouts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"workoutId":9,"workoutName":"Intervals","sportType":{"sportTypeKey":"running"}}]`)
	})

	c := statsClient(f, "")
	workouts, err := c.Workouts(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, workouts, 1)
	assert.Equal(t, "Intervals", workouts[0].WorkoutName)
}
