package dialog

import (
	"time"

	"github.com/studhelper/studhelper/internal/models"
	"github.com/studhelper/studhelper/internal/services"
)

// MemberView is a team member as shown in selection lists.
type MemberView struct {
	StudentID int64  `json:"student_id"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
}

// ReportView is a submitted report as shown to its author.
type ReportView struct {
	Sprint int       `json:"sprint"`
	Text   string    `json:"text"`
	Date   time.Time `json:"date"`
}

// RatingView is a received rating.
type RatingView struct {
	AssessorName  string    `json:"assessor_name"`
	Score         int       `json:"score"`
	Advantages    string    `json:"advantages,omitempty"`
	Disadvantages string    `json:"disadvantages,omitempty"`
	Date          time.Time `json:"date"`
}

func memberViews(members []models.TeamMembership, adminID int64) []MemberView {
	out := make([]MemberView, 0, len(members))
	for _, member := range members {
		view := MemberView{StudentID: member.StudentID, Role: member.Role, IsAdmin: member.StudentID == adminID}
		if member.Student != nil {
			view.Name = member.Student.Name
		}
		out = append(out, view)
	}
	return out
}

func studentViews(students []models.Student) []MemberView {
	out := make([]MemberView, 0, len(students))
	for _, student := range students {
		out = append(out, MemberView{StudentID: student.StudentID, Name: student.Name})
	}
	return out
}

func reportViews(reports []models.SprintReport) []ReportView {
	out := make([]ReportView, 0, len(reports))
	for _, report := range reports {
		out = append(out, ReportView{Sprint: report.SprintNum, Text: report.ReportText, Date: report.ReportDate})
	}
	return out
}

func ratingViews(ratings []models.Rating) []RatingView {
	out := make([]RatingView, 0, len(ratings))
	for _, rating := range ratings {
		view := RatingView{
			Score:         rating.OverallRating,
			Advantages:    rating.Advantages,
			Disadvantages: rating.Disadvantages,
			Date:          rating.RateDate,
		}
		if rating.Assessor != nil {
			view.AssessorName = rating.Assessor.Name
		}
		out = append(out, view)
	}
	return out
}

func statsView(stats services.MemberStats) map[string]any {
	return map[string]any{
		"student_id":         stats.StudentID,
		"name":               stats.Name,
		"group":              stats.Group,
		"role":               stats.Role,
		"is_admin":           stats.IsAdmin,
		"report_count":       stats.ReportCount,
		"ratings_given":      stats.RatingsGiven,
		"ratings_received":   stats.RatingsReceived,
		"avg_received_score": stats.AvgReceivedScore,
	}
}
