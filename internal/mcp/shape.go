// ABOUTME: Reshapes Garmin sleep responses into summary and detail views.
// ABOUTME: Uses gjson paths so missing fields come back as null.
package mcp

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

type sleepSummary struct {
	CalendarDate         any `json:"calendarDate"`
	SleepScore           any `json:"sleepScore"`
	SleepQuality         any `json:"sleepQuality"`
	SleepStartLocal      any `json:"sleepStartLocal"`
	SleepEndLocal        any `json:"sleepEndLocal"`
	SleepDurationSecs    any `json:"sleepDurationSecs"`
	DeepSleepSecs        any `json:"deepSleepSecs"`
	LightSleepSecs       any `json:"lightSleepSecs"`
	RemSleepSecs         any `json:"remSleepSecs"`
	AwakeSleepSecs       any `json:"awakeSleepSecs"`
	AverageSpO2          any `json:"averageSpO2"`
	LowestSpO2           any `json:"lowestSpO2"`
	AverageRespiration   any `json:"averageRespiration"`
	RestingHeartRate     any `json:"restingHeartRate"`
	AvgOvernightHrv      any `json:"avgOvernightHrv"`
	HrvStatus            any `json:"hrvStatus"`
	BodyBatteryChange    any `json:"bodyBatteryChange"`
	RestlessMomentsCount any `json:"restlessMomentsCount"`
	SleepLevels          any `json:"sleepLevels"`
}

type sleepDetail struct {
	SleepMovement    any `json:"sleepMovement"`
	SleepHeartRate   any `json:"sleepHeartRate"`
	SleepStress      any `json:"sleepStress"`
	SleepBodyBattery any `json:"sleepBodyBattery"`
	HrvData          any `json:"hrvData"`
	SpO2Data         any `json:"spO2Data"`
	RespirationData  any `json:"respirationData"`
	RestlessMoments  any `json:"restlessMoments"`
}

// pick returns the raw JSON at path, or nil when it is absent.
func pick(raw json.RawMessage, path string) any {
	r := gjson.GetBytes(raw, path)
	if !r.Exists() {
		return nil
	}
	return json.RawMessage(r.Raw)
}

func summarizeSleep(raw json.RawMessage) sleepSummary {
	dto := func(field string) any { return pick(raw, "dailySleepDTO."+field) }

	levels := pick(raw, "sleepLevels")
	if levels == nil {
		levels = []any{}
	}
	return sleepSummary{
		CalendarDate:         dto("calendarDate"),
		SleepScore:           dto("sleepScores.overall.value"),
		SleepQuality:         dto("sleepScores.overall.qualifierKey"),
		SleepStartLocal:      dto("sleepStartTimestampLocal"),
		SleepEndLocal:        dto("sleepEndTimestampLocal"),
		SleepDurationSecs:    dto("sleepTimeSeconds"),
		DeepSleepSecs:        dto("deepSleepSeconds"),
		LightSleepSecs:       dto("lightSleepSeconds"),
		RemSleepSecs:         dto("remSleepSeconds"),
		AwakeSleepSecs:       dto("awakeSleepSeconds"),
		AverageSpO2:          dto("averageSpO2Value"),
		LowestSpO2:           dto("lowestSpO2Value"),
		AverageRespiration:   dto("averageRespirationValue"),
		RestingHeartRate:     pick(raw, "restingHeartRate"),
		AvgOvernightHrv:      pick(raw, "avgOvernightHrv"),
		HrvStatus:            pick(raw, "hrvStatus"),
		BodyBatteryChange:    pick(raw, "bodyBatteryChange"),
		RestlessMomentsCount: pick(raw, "restlessMomentsCount"),
		SleepLevels:          levels,
	}
}

func detailSleep(raw json.RawMessage) sleepDetail {
	return sleepDetail{
		SleepMovement:    pick(raw, "sleepMovement"),
		SleepHeartRate:   pick(raw, "sleepHeartRate"),
		SleepStress:      pick(raw, "sleepStress"),
		SleepBodyBattery: pick(raw, "sleepBodyBattery"),
		HrvData:          pick(raw, "hrvData"),
		SpO2Data:         pick(raw, "wellnessEpochSPO2DataDTOList"),
		RespirationData:  pick(raw, "wellnessEpochRespirationDataDTOList"),
		RestlessMoments:  pick(raw, "sleepRestlessMoments"),
	}
}

// countItems returns the length of a JSON array, or 0 for anything else.
func countItems(raw json.RawMessage) int {
	if !gjson.ParseBytes(raw).IsArray() {
		return 0
	}
	return int(gjson.GetBytes(raw, "#").Int())
}
