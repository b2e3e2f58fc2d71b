package domain

import (
	"github.com/shopspring/decimal"
)

// CourseProgress summarizes one enrollment for the reasoning service.
type CourseProgress struct {
	Course      string  `json:"course"`
	Category    string  `json:"category,omitempty"`
	Progress    float64 `json:"progress"`
	IsCompleted bool    `json:"isCompleted"`
}

// UserContext is the per-call snapshot used to personalize tutor replies.
// It is rebuilt from the store for every call.
type UserContext struct {
	SkillLevel       string           `json:"skillLevel"`
	LearningProgress []CourseProgress `json:"learningProgress"`
	CompletedCourses int              `json:"completedCourses"`
	TotalCourses     int              `json:"totalCourses"`
	AverageProgress  string           `json:"averageProgress"`
}

// BuildUserContext derives a UserContext from a profile and its enrollments.
func BuildUserContext(user *User, courses []*UserCourse) UserContext {
	uc := UserContext{
		SkillLevel:       user.EffectiveSkillLevel(),
		LearningProgress: make([]CourseProgress, 0, len(courses)),
		TotalCourses:     len(courses),
	}
	for _, c := range courses {
		entry := CourseProgress{Progress: c.Progress, IsCompleted: c.IsCompleted}
		if c.Course != nil {
			entry.Course = c.Course.Title
			entry.Category = c.Course.Category
		}
		if c.IsCompleted {
			uc.CompletedCourses++
		}
		uc.LearningProgress = append(uc.LearningProgress, entry)
	}
	uc.AverageProgress = AverageProgress(courses).StringFixed(1)
	return uc
}

// AverageProgress returns the mean enrollment progress rounded to one decimal.
// An empty slice averages to zero.
func AverageProgress(courses []*UserCourse) decimal.Decimal {
	if len(courses) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, c := range courses {
		sum = sum.Add(decimal.NewFromFloat(c.Progress))
	}
	return sum.Div(decimal.NewFromInt(int64(len(courses)))).Round(1)
}
