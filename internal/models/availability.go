package models

// AvailabilityEntry is one offered hour in a counsellor's recurring weekly
// template. StartTime is a "HH:MM" time-of-day in the operating timezone;
// Period is an informational grouping, the (DayOfWeek, StartTime) pair is
// what booking checks against.
type AvailabilityEntry struct {
	ID           int64  `json:"id"`
	CounsellorID int64  `json:"counsellor_id"`
	DayOfWeek    string `json:"day_of_week"`
	Period       string `json:"period"`
	StartTime    string `json:"start_time"`
}
