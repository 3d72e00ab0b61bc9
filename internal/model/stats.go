package model

// Stats is the server's progress summary for the signed-in ambassador.
type Stats struct {
	TotalPoints int `json:"total_points"`

	// WeeklyProgress is a percentage computed by the server.
	WeeklyProgress int `json:"weekly_progress"`
}
