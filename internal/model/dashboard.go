package model

// DashboardStats holds the admin overview counters.
type DashboardStats struct {
	TotalExams   int `json:"total_exams"`
	UnusedPins   int `json:"unused_pins"`
	UsedPins     int `json:"used_pins"`
	TotalResults int `json:"total_results"`
	PassedCount  int `json:"passed_count"`
}
