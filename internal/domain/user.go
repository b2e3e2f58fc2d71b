// Package domain contains core domain types for the LearnHub application.
package domain

import (
	"time"
)

// DefaultSkillLevel is assigned to profiles that have not set one.
const DefaultSkillLevel = "Beginner"

// User is a learner profile. The ID is the subject issued by the auth provider.
type User struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email,omitempty"`
	FirstName          string    `json:"firstName,omitempty"`
	LastName           string    `json:"lastName,omitempty"`
	ProfileImageURL    string    `json:"profileImageUrl,omitempty"`
	SkillLevel         string    `json:"skillLevel"`
	CurrentStreak      int       `json:"currentStreak"`
	TotalLearningHours int       `json:"totalLearningHours"`
	Level              int       `json:"level"`
	TotalXP            int       `json:"totalXp"`
	WeeklyGoalHours    int       `json:"weeklyGoalHours"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// EffectiveSkillLevel returns the skill level, falling back to DefaultSkillLevel.
func (u *User) EffectiveSkillLevel() string {
	if u.SkillLevel == "" {
		return DefaultSkillLevel
	}
	return u.SkillLevel
}

// NewUser returns a profile with the defaults applied to new learners.
func NewUser(id, email, firstName, lastName, imageURL string, now time.Time) *User {
	return &User{
		ID:              id,
		Email:           email,
		FirstName:       firstName,
		LastName:        lastName,
		ProfileImageURL: imageURL,
		SkillLevel:      DefaultSkillLevel,
		Level:           1,
		WeeklyGoalHours: 7,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
