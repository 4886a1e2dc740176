// ABOUTME: MCP tool implementations for Garmin Connect.
// ABOUTME: Read tools for daily health data plus hydration and period writes.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/garmin-mcp/internal/garmin"
	"github.com/harperreed/garmin-mcp/internal/models"
	"github.com/harperreed/garmin-mcp/internal/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultActivityLimit = 5
	maxActivityLimit     = 100
)

// Error kinds reported in toolResponse.ErrorKind.
const (
	kindAuthentication = "authentication"
	kindRemote         = "remote"
	kindInvalidInput   = "invalid_input"
)

func (s *Server) registerTools() {
	// get_daily_summary
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "get_daily_summary",
		Description: "Get a combined daily health overview: steps, distance, body battery, " +
			"sleep score, resting HR, stress and active minutes. Good for a morning check-in.",
	}, s.dateTool("get_daily_summary", func(ctx context.Context, sess *session.Session, date string) (any, error) {
		return sess.Client.UserSummary(ctx, sess.Profile.DisplayName, date)
	}))

	// get_body_battery
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_body_battery",
		Description: "Get body battery data: current level, high and low, charged and drained values, and the day's events.",
	}, s.handleGetBodyBattery)

	// get_sleep_data
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "get_sleep_data",
		Description: "Get a sleep summary: score, duration, bedtime, wake time and stage durations. " +
			"Use get_sleep_detail for granular data.",
	}, s.dateTool("get_sleep_data", func(ctx context.Context, sess *session.Session, date string) (any, error) {
		raw, err := sess.Client.SleepData(ctx, sess.Profile.DisplayName, date)
		if err != nil {
			return nil, err
		}
		return summarizeSleep(raw), nil
	}))

	// get_sleep_detail
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "get_sleep_detail",
		Description: "Get granular sleep data: movement, SpO2, heart rate, stress, body battery, " +
			"respiration and HRV readings through the night. The response is large; only use it for detailed analysis.",
	}, s.dateTool("get_sleep_detail", func(ctx context.Context, sess *session.Session, date string) (any, error) {
		raw, err := sess.Client.SleepData(ctx, sess.Profile.DisplayName, date)
		if err != nil {
			return nil, err
		}
		return detailSleep(raw), nil
	}))

	// get_heart_rate
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_heart_rate",
		Description: "Get daily heart rate data: min, max, average and resting.",
	}, s.dateTool("get_heart_rate", func(ctx context.Context, sess *session.Session, date string) (any, error) {
		return sess.Client.HeartRates(ctx, sess.Profile.DisplayName, date)
	}))

	// get_resting_heart_rate
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_resting_heart_rate",
		Description: "Get resting heart rate for baseline trend tracking.",
	}, s.dateTool("get_resting_heart_rate", func(ctx context.Context, sess *session.Session, date string) (any, error) {
		return sess.Client.RestingHeartRate(ctx, sess.Profile.DisplayName, date)
	}))

	// get_stress
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_stress",
		Description: "Get stress data: average and max stress, and time in rest, low, medium and high zones.",
	}, s.dateTool("get_stress", func(ctx context.Context, sess *session.Session, date string) (any, error) {
		return sess.Client.Stress(ctx, date)
	}))

	// get_steps
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_steps",
		Description: "Get the daily step count and activity chart.",
	}, s.dateTool("get_steps", func(ctx context.Context, sess *session.Session, date string) (any, error) {
		return sess.Client.Steps(ctx, sess.Profile.DisplayName, date)
	}))

	// get_menstrual_cycle
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_menstrual_cycle",
		Description: "Get menstrual cycle tracking data: cycle day, phase and predictions.",
	}, s.dateTool("get_menstrual_cycle", func(ctx context.Context, sess *session.Session, date string) (any, error) {
		return sess.Client.MenstrualDayView(ctx, date)
	}))

	// update_menstrual_cycle
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "update_menstrual_cycle",
		Description: "Log or update a period's start and end dates in the Garmin Connect menstrual calendar. " +
			"The submitted range replaces what Garmin has stored for that period.",
	}, s.handleUpdateMenstrualCycle)

	// get_hrv
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_hrv",
		Description: "Get heart rate variability data. Higher HRV generally indicates better recovery.",
	}, s.dateTool("get_hrv", func(ctx context.Context, sess *session.Session, date string) (any, error) {
		return sess.Client.HRV(ctx, date)
	}))

	// get_hydration
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_hydration",
		Description: "Get hydration and water intake data for the day.",
	}, s.dateTool("get_hydration", func(ctx context.Context, sess *session.Session, date string) (any, error) {
		return sess.Client.Hydration(ctx, date)
	}))

	// add_hydration
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_hydration",
		Description: "Log water intake in milliliters (e.g. 250 for a glass, 500 for a bottle). A negative amount corrects an earlier entry.",
	}, s.handleAddHydration)

	// get_activities
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_activities",
		Description: "Get recent activities such as runs, walks, rides and dives, newest first.",
	}, s.handleGetActivities)
}

// Tool input/output types

type dateInput struct {
	Date *string `json:"date,omitempty" jsonschema:"Date in YYYY-MM-DD format. Defaults to today."`
}

type updateMenstrualCycleInput struct {
	StartDate string `json:"start_date" jsonschema:"First day of the period in YYYY-MM-DD format."`
	EndDate   string `json:"end_date" jsonschema:"Last day of the period in YYYY-MM-DD format."`
}

type addHydrationInput struct {
	AmountML float64 `json:"amount_ml" jsonschema:"Amount of water in ml."`
}

type activitiesInput struct {
	Limit *int `json:"limit,omitempty" jsonschema:"Number of recent activities to return. Defaults to 5, at most 100."`
}

// toolResponse is the result of every tool.
type toolResponse struct {
	Success   bool     `json:"success" jsonschema:"Whether the call succeeded."`
	Date      string   `json:"date,omitempty" jsonschema:"The calendar date that was queried."`
	Message   string   `json:"message,omitempty"`
	Count     *int     `json:"count,omitempty"`
	LoggedML  *float64 `json:"logged_ml,omitempty"`
	Dates     []string `json:"dates,omitempty" jsonschema:"Every date submitted to the menstrual calendar."`
	Data      any      `json:"data,omitempty" jsonschema:"The Garmin response."`
	Battery   any      `json:"battery,omitempty"`
	Events    any      `json:"events,omitempty"`
	Error     string   `json:"error,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty" jsonschema:"authentication, remote or invalid_input."`
}

type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func invalidInput(format string, args ...any) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}

// failure converts err into a tool response carrying its kind.
func failure(err error) toolResponse {
	var inErr *inputError
	switch {
	case errors.As(err, &inErr):
		return toolResponse{Error: inErr.msg, ErrorKind: kindInvalidInput}
	case errors.Is(err, session.ErrUnavailable):
		return toolResponse{
			Error:     "Not authenticated. Run 'garmin-mcp auth login' to set up Garmin credentials.",
			ErrorKind: kindAuthentication,
		}
	case errors.Is(err, garmin.ErrAuthentication),
		errors.Is(err, garmin.ErrNotAuthenticated),
		errors.Is(err, garmin.ErrMFARequired):
		return toolResponse{Error: fmt.Sprintf("Garmin authentication error: %v", err), ErrorKind: kindAuthentication}
	default:
		return toolResponse{Error: fmt.Sprintf("Garmin API error: %v", err), ErrorKind: kindRemote}
	}
}

// run executes fn as one tool call and converts its outcome into a result.
// Failures are reported in the result, never as a Go error.
func (s *Server) run(ctx context.Context, tool string, fn func(context.Context) (toolResponse, error)) (res *mcp.CallToolResult, out toolResponse, err error) {
	logger := s.logger.With("tool", tool, "call_id", uuid.NewString())
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool panicked", "panic", r)
			out = toolResponse{Error: fmt.Sprintf("internal error: %v", r), ErrorKind: kindRemote}
			res, err = toolResult(out), nil
		}
	}()

	out, callErr := fn(ctx)
	if callErr != nil {
		out = failure(callErr)
		logger.Warn("tool failed", "kind", out.ErrorKind, "err", callErr, "duration", time.Since(start))
	} else {
		out.Success = true
		logger.Info("tool ok", "duration", time.Since(start))
	}
	return toolResult(out), out, nil
}

func toolResult(out toolResponse) *mcp.CallToolResult {
	data, err := json.Marshal(out)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"success":false,"error":%q,"error_kind":%q}`, err.Error(), kindRemote))
	}
	return &mcp.CallToolResult{
		IsError: !out.Success,
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

// dateTool builds a handler for a tool that reads one day of data.
func (s *Server) dateTool(name string, fetch func(context.Context, *session.Session, string) (any, error)) mcp.ToolHandlerFor[dateInput, toolResponse] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input dateInput) (*mcp.CallToolResult, toolResponse, error) {
		return s.run(ctx, name, func(ctx context.Context) (toolResponse, error) {
			date, err := resolveDate(input.Date, s.now())
			if err != nil {
				return toolResponse{}, err
			}
			sess, err := s.sessions.Session(ctx)
			if err != nil {
				return toolResponse{}, err
			}
			data, err := fetch(ctx, sess, date)
			if err != nil {
				return toolResponse{}, err
			}
			return toolResponse{Date: date, Data: data}, nil
		})
	}
}

// Tool handlers

func (s *Server) handleGetBodyBattery(ctx context.Context, req *mcp.CallToolRequest, input dateInput) (*mcp.CallToolResult, toolResponse, error) {
	return s.run(ctx, "get_body_battery", func(ctx context.Context) (toolResponse, error) {
		date, err := resolveDate(input.Date, s.now())
		if err != nil {
			return toolResponse{}, err
		}
		sess, err := s.sessions.Session(ctx)
		if err != nil {
			return toolResponse{}, err
		}
		battery, err := sess.Client.BodyBattery(ctx, date)
		if err != nil {
			return toolResponse{}, err
		}
		events, err := sess.Client.BodyBatteryEvents(ctx, date)
		if err != nil {
			return toolResponse{}, err
		}
		return toolResponse{Date: date, Battery: battery, Events: events}, nil
	})
}

func (s *Server) handleUpdateMenstrualCycle(ctx context.Context, req *mcp.CallToolRequest, input updateMenstrualCycleInput) (*mcp.CallToolResult, toolResponse, error) {
	return s.run(ctx, "update_menstrual_cycle", func(ctx context.Context) (toolResponse, error) {
		start, err := parseDate("start_date", input.StartDate)
		if err != nil {
			return toolResponse{}, err
		}
		end, err := parseDate("end_date", input.EndDate)
		if err != nil {
			return toolResponse{}, err
		}
		period, err := models.ParseCyclePeriod(start, end)
		if errors.Is(err, models.ErrPeriodTooLong) {
			return toolResponse{}, invalidInput("a period spans at most %d days", models.MaxPeriodDays)
		}
		if err != nil {
			return toolResponse{}, invalidInput("end_date must be on or after start_date")
		}

		sess, err := s.sessions.Session(ctx)
		if err != nil {
			return toolResponse{}, err
		}
		update := garmin.NewCalendarUpdate(sess.ProfilePK, period, s.now())
		if err := sess.Client.UpdateMenstrualCalendar(ctx, update); err != nil {
			return toolResponse{}, err
		}

		dates := period.Dates()
		return toolResponse{
			Message: fmt.Sprintf("Period logged: %s to %s (%d days)", period.StartDate(), period.EndDate(), len(dates)),
			Dates:   dates,
		}, nil
	})
}

func (s *Server) handleAddHydration(ctx context.Context, req *mcp.CallToolRequest, input addHydrationInput) (*mcp.CallToolResult, toolResponse, error) {
	return s.run(ctx, "add_hydration", func(ctx context.Context) (toolResponse, error) {
		ml := input.AmountML
		if math.IsNaN(ml) || math.IsInf(ml, 0) || ml == 0 {
			return toolResponse{}, invalidInput("amount_ml must be a non-zero number of milliliters")
		}
		sess, err := s.sessions.Session(ctx)
		if err != nil {
			return toolResponse{}, err
		}
		data, err := sess.Client.AddHydration(ctx, garmin.NewHydrationLog(ml, s.now()))
		if err != nil {
			return toolResponse{}, err
		}
		return toolResponse{
			LoggedML: &ml,
			Message:  fmt.Sprintf("Logged %gml of water", ml),
			Data:     data,
		}, nil
	})
}

func (s *Server) handleGetActivities(ctx context.Context, req *mcp.CallToolRequest, input activitiesInput) (*mcp.CallToolResult, toolResponse, error) {
	return s.run(ctx, "get_activities", func(ctx context.Context) (toolResponse, error) {
		limit := defaultActivityLimit
		if input.Limit != nil {
			limit = *input.Limit
		}
		if limit < 1 {
			return toolResponse{}, invalidInput("limit must be at least 1, got %d", limit)
		}
		limit = min(limit, maxActivityLimit)

		sess, err := s.sessions.Session(ctx)
		if err != nil {
			return toolResponse{}, err
		}
		data, err := sess.Client.Activities(ctx, 0, limit)
		if err != nil {
			return toolResponse{}, err
		}
		count := countItems(data)
		return toolResponse{Count: &count, Data: data}, nil
	})
}
