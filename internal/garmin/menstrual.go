// ABOUTME: Write adapter for the undocumented menstrual calendar endpoint.
// ABOUTME: Each update replaces the stored period with the submitted date list.
package garmin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/harperreed/garmin-mcp/internal/models"
)

// MenstrualCalendarPath receives full-period calendar updates. Its contract
// was observed from the Garmin Connect web app and may change without notice.
const MenstrualCalendarPath = "/periodichealth-service/menstrualcycle/calendarupdates"

const reportTimestampLayout = "2006-01-02T15:04:05.000"

// CalendarUpdate is the JSON body of a menstrual calendar update.
type CalendarUpdate struct {
	UserProfilePK     int64      `json:"userProfilePk"`
	TodayCalendarDate string     `json:"todayCalendarDate"`
	StartDate         string     `json:"startDate"`
	EndDate           string     `json:"endDate"`
	FutureEditsByFE   bool       `json:"futureEditsByFE"`
	ReportTimestamp   string     `json:"reportTimestamp"`
	CycleDatesLists   [][]string `json:"cycleDatesLists"`
}

// NewCalendarUpdate builds the update for period, stamped with now.
func NewCalendarUpdate(profilePK int64, period models.CyclePeriod, now time.Time) CalendarUpdate {
	return CalendarUpdate{
		UserProfilePK:     profilePK,
		TodayCalendarDate: now.Format(models.DateLayout),
		StartDate:         period.StartDate(),
		EndDate:           period.EndDate(),
		FutureEditsByFE:   true,
		ReportTimestamp:   now.Format(reportTimestampLayout),
		CycleDatesLists:   [][]string{period.Dates()},
	}
}

// UpdateMenstrualCalendar submits u. Only 204 No Content counts as success.
func (c *Client) UpdateMenstrualCalendar(ctx context.Context, u CalendarUpdate) error {
	resp, err := c.Do(ctx, http.MethodPost, MenstrualCalendarPath, nil, u)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Unwrap() == nil {
			return fmt.Errorf("update menstrual calendar: %w: %w", ErrUnexpectedStatus, err)
		}
		return fmt.Errorf("update menstrual calendar: %w", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("update menstrual calendar: %w: got %d, want %d",
			ErrUnexpectedStatus, resp.StatusCode, http.StatusNoContent)
	}
	return nil
}
