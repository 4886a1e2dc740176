// ABOUTME: Hydration log write endpoint.
// ABOUTME: Adds (or with a negative value removes) water intake for a day.
package garmin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/harperreed/garmin-mcp/internal/models"
)

const hydrationLogPath = "/usersummary-service/usersummary/hydration/log"

// HydrationLog is the body of a hydration log entry.
type HydrationLog struct {
	CalendarDate   string  `json:"calendarDate"`
	TimestampLocal string  `json:"timestampLocal"`
	ValueInML      float64 `json:"valueInML"`
}

// NewHydrationLog stamps an entry of ml milliliters at now.
func NewHydrationLog(ml float64, now time.Time) HydrationLog {
	return HydrationLog{
		CalendarDate:   now.Format(models.DateLayout),
		TimestampLocal: now.Format("2006-01-02T15:04:05.000000"),
		ValueInML:      ml,
	}
}

// AddHydration logs an entry and returns the updated daily hydration record.
func (c *Client) AddHydration(ctx context.Context, entry HydrationLog) (json.RawMessage, error) {
	raw, err := c.ConnectAPI(ctx, http.MethodPut, hydrationLogPath, nil, entry)
	if err != nil {
		return nil, fmt.Errorf("add hydration: %w", err)
	}
	return raw, nil
}
