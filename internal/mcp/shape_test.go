// ABOUTME: Tests for sleep response shaping and date resolution.
// ABOUTME: Checks field extraction, defaults for missing data, and date parsing.
package mcp

import (
	"encoding/json"
	"testing"
	"time"
)

const sleepFixture = `{
	"dailySleepDTO": {
		"calendarDate": "2026-02-10",
		"sleepTimeSeconds": 27000,
		"deepSleepSeconds": 5400,
		"lightSleepSeconds": 14400,
		"remSleepSeconds": 6000,
		"awakeSleepSeconds": 1200,
		"sleepStartTimestampLocal": 1770678000000,
		"sleepEndTimestampLocal": 1770705000000,
		"averageSpO2Value": 95.0,
		"lowestSpO2Value": 89,
		"averageRespirationValue": 14.5,
		"sleepScores": {"overall": {"value": 82, "qualifierKey": "GOOD"}}
	},
	"sleepLevels": [{"activityLevel": 1.0}],
	"restingHeartRate": 52,
	"avgOvernightHrv": 41.0,
	"hrvStatus": "BALANCED",
	"bodyBatteryChange": 48,
	"restlessMomentsCount": 31,
	"hrvData": [{"value": 40.0}],
	"wellnessEpochSPO2DataDTOList": [{"spo2Reading": 96}]
}`

func marshalString(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestSummarizeSleep(t *testing.T) {
	got := summarizeSleep(json.RawMessage(sleepFixture))

	checks := []struct {
		name string
		got  any
		want string
	}{
		{"calendarDate", got.CalendarDate, `"2026-02-10"`},
		{"sleepScore", got.SleepScore, `82`},
		{"sleepQuality", got.SleepQuality, `"GOOD"`},
		{"sleepStartLocal", got.SleepStartLocal, `1770678000000`},
		{"deepSleepSecs", got.DeepSleepSecs, `5400`},
		{"awakeSleepSecs", got.AwakeSleepSecs, `1200`},
		{"averageSpO2", got.AverageSpO2, `95.0`},
		{"averageRespiration", got.AverageRespiration, `14.5`},
		{"hrvStatus", got.HrvStatus, `"BALANCED"`},
		{"bodyBatteryChange", got.BodyBatteryChange, `48`},
		{"restlessMomentsCount", got.RestlessMomentsCount, `31`},
		{"sleepLevels", got.SleepLevels, `[{"activityLevel":1.0}]`},
	}
	for _, c := range checks {
		if s := marshalString(t, c.got); s != c.want {
			t.Errorf("%s = %s, want %s", c.name, s, c.want)
		}
	}
}

func TestSummarizeSleepEmpty(t *testing.T) {
	got := summarizeSleep(nil)

	if got.SleepScore != nil {
		t.Errorf("SleepScore = %v, want nil", got.SleepScore)
	}
	if s := marshalString(t, got.SleepLevels); s != "[]" {
		t.Errorf("SleepLevels = %s, want []", s)
	}
}

func TestDetailSleep(t *testing.T) {
	got := detailSleep(json.RawMessage(sleepFixture))

	if s := marshalString(t, got.HrvData); s != `[{"value":40.0}]` {
		t.Errorf("HrvData = %s", s)
	}
	if s := marshalString(t, got.SpO2Data); s != `[{"spo2Reading":96}]` {
		t.Errorf("SpO2Data = %s", s)
	}
	if got.SleepMovement != nil {
		t.Errorf("SleepMovement = %v, want nil", got.SleepMovement)
	}
}

func TestCountItems(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`[]`, 0},
		{`[{"activityId":1},{"activityId":2},{"activityId":3}]`, 3},
		{`{"activityId":1}`, 0},
		{``, 0},
	}
	for _, tt := range tests {
		if got := countItems(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("countItems(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestResolveDate(t *testing.T) {
	now := time.Date(2026, 2, 10, 23, 59, 0, 0, time.FixedZone("PST", -8*3600))
	d := func(s string) *string { return &s }

	tests := []struct {
		name    string
		in      *string
		want    string
		wantErr bool
	}{
		{"absent is today in local time", nil, "2026-02-10", false},
		{"calendar date", d("2026-01-31"), "2026-01-31", false},
		{"surrounding space", d(" 2026-01-31 "), "2026-01-31", false},
		{"timestamp keeps its own date", d("2026-01-31T23:30:00-05:00"), "2026-01-31", false},
		{"empty string", d(""), "", true},
		{"wrong layout", d("31/01/2026"), "", true},
		{"no such day", d("2026-02-29"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveDate(tt.in, now)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("resolveDate() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveDate() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveDate() = %q, want %q", got, tt.want)
			}
		})
	}
}
