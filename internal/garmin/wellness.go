// ABOUTME: Read-only Connect API endpoints for daily health metrics.
// ABOUTME: Each method returns the raw JSON Garmin sends back.
package garmin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// Endpoint paths. Display-name scoped paths take the name as a suffix.
const (
	userSummaryPath       = "/usersummary-service/usersummary/daily/"
	bodyBatteryPath       = "/wellness-service/wellness/bodyBattery/reports/daily"
	bodyBatteryEventsPath = "/wellness-service/wellness/bodyBattery/events/"
	sleepPath             = "/wellness-service/wellness/dailySleepData/"
	heartRatePath         = "/wellness-service/wellness/dailyHeartRate/"
	restingHeartRatePath  = "/userstats-service/wellness/daily/"
	stressPath            = "/wellness-service/wellness/dailyStress/"
	stepsPath             = "/wellness-service/wellness/dailySummaryChart/"
	menstrualDayViewPath  = "/periodichealth-service/menstrualcycle/dayview/"
	hrvPath               = "/hrv-service/hrv/"
	hydrationPath         = "/usersummary-service/usersummary/hydration/daily/"
	activitiesPath        = "/activitylist-service/activities/search/activities"

	restingHeartRateMetricID = "60"
)

func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.ConnectAPI(ctx, http.MethodGet, path, query, nil)
}

// UserSummary returns the combined daily summary for date (YYYY-MM-DD).
func (c *Client) UserSummary(ctx context.Context, displayName, date string) (json.RawMessage, error) {
	return c.get(ctx, userSummaryPath+url.PathEscape(displayName), url.Values{"calendarDate": {date}})
}

// BodyBattery returns the daily body battery reports for date.
func (c *Client) BodyBattery(ctx context.Context, date string) (json.RawMessage, error) {
	return c.get(ctx, bodyBatteryPath, url.Values{"startDate": {date}, "endDate": {date}})
}

// BodyBatteryEvents returns the charge and drain events for date.
func (c *Client) BodyBatteryEvents(ctx context.Context, date string) (json.RawMessage, error) {
	return c.get(ctx, bodyBatteryEventsPath+date, nil)
}

// SleepData returns the full sleep record for the night ending on date.
func (c *Client) SleepData(ctx context.Context, displayName, date string) (json.RawMessage, error) {
	return c.get(ctx, sleepPath+url.PathEscape(displayName), url.Values{
		"date":                  {date},
		"nonSleepBufferMinutes": {"60"},
	})
}

// HeartRates returns the daily heart rate summary and samples.
func (c *Client) HeartRates(ctx context.Context, displayName, date string) (json.RawMessage, error) {
	return c.get(ctx, heartRatePath+url.PathEscape(displayName), url.Values{"date": {date}})
}

// RestingHeartRate returns the resting heart rate statistic for date.
func (c *Client) RestingHeartRate(ctx context.Context, displayName, date string) (json.RawMessage, error) {
	return c.get(ctx, restingHeartRatePath+url.PathEscape(displayName), url.Values{
		"fromDate":  {date},
		"untilDate": {date},
		"metricId":  {restingHeartRateMetricID},
	})
}

// Stress returns the daily stress summary and samples.
func (c *Client) Stress(ctx context.Context, date string) (json.RawMessage, error) {
	return c.get(ctx, stressPath+date, nil)
}

// Steps returns the step chart for date.
func (c *Client) Steps(ctx context.Context, displayName, date string) (json.RawMessage, error) {
	return c.get(ctx, stepsPath+url.PathEscape(displayName), url.Values{"date": {date}})
}

// MenstrualDayView returns cycle day, phase and predictions for date.
func (c *Client) MenstrualDayView(ctx context.Context, date string) (json.RawMessage, error) {
	return c.get(ctx, menstrualDayViewPath+date, nil)
}

// HRV returns heart rate variability readings for date.
func (c *Client) HRV(ctx context.Context, date string) (json.RawMessage, error) {
	return c.get(ctx, hrvPath+date, nil)
}

// Hydration returns the hydration log for date.
func (c *Client) Hydration(ctx context.Context, date string) (json.RawMessage, error) {
	return c.get(ctx, hydrationPath+date, nil)
}

// Activities returns the most recent activities, newest first.
func (c *Client) Activities(ctx context.Context, start, limit int) (json.RawMessage, error) {
	return c.get(ctx, activitiesPath, url.Values{
		"start": {strconv.Itoa(start)},
		"limit": {strconv.Itoa(limit)},
	})
}
