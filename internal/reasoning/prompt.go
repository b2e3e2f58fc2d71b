package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/learnhub/internal/domain"
)

const tutorSystemPrompt = `You are an AI tutor that provides personalized learning guidance. You use the Socratic method to guide students to understanding through strategic questioning. Be encouraging, patient, and adaptive to the student's learning style and pace.

User context: %s

Guidelines:
- Ask probing questions to guide understanding
- Provide hints without giving away answers
- Celebrate progress and achievements
- Adapt explanations to the user's skill level
- Be encouraging and supportive`

const recommendationsSystemPrompt = `You are an AI learning assistant that provides personalized course recommendations based on user progress and skill level. Analyze the user's learning data and provide relevant recommendations with explanations.`

const recommendationsUserPrompt = `User skill level: %s
User progress: %s
Completed courses: %s

Please provide 3-5 personalized course recommendations in JSON format with the following structure:
{
  "recommendations": [
    {
      "title": "Course Title",
      "description": "Course description",
      "reason": "Why this course is recommended for this user",
      "priority": 1-5,
      "estimatedDuration": duration_in_minutes
    }
  ]
}`

const analysisSystemPrompt = `You are an AI learning analytics expert that analyzes user progress and provides insights and recommendations.`

const analysisUserPrompt = `User progress data: %s
Assessment results: %s

Please analyze the user's learning progress and provide insights in JSON format:
{
  "analysis": {
    "strengths": ["strength1", "strength2"],
    "weaknesses": ["weakness1", "weakness2"],
    "recommendations": ["recommendation1", "recommendation2"],
    "nextSteps": ["step1", "step2"],
    "motivationalMessage": "Encouraging message for the user"
  }
}`

const learningPathSystemPrompt = `You are an AI learning path generator that creates personalized learning journeys based on user goals, skill level, and time availability.`

const learningPathUserPrompt = `User goals: %s
Current skill level: %s
Time available per week: %d hours

Please create a personalized learning path in JSON format:
{
  "path": {
    "title": "Learning Path Title",
    "description": "Path description",
    "steps": [
      {
        "title": "Step title",
        "description": "Step description",
        "estimatedDuration": duration_in_minutes,
        "skills": ["skill1", "skill2"]
      }
    ],
    "totalDuration": total_duration_in_minutes
  }
}`

// TutorSystemPrompt renders the tutor persona with the learner's context.
func TutorSystemPrompt(uc domain.UserContext) string {
	return fmt.Sprintf(tutorSystemPrompt, promptJSON(uc))
}

func recommendationsMessages(in RecommendationInput) []Message {
	return []Message{
		{Role: RoleSystem, Content: recommendationsSystemPrompt},
		{Role: RoleUser, Content: fmt.Sprintf(recommendationsUserPrompt,
			in.SkillLevel, promptJSON(in.Progress), promptJSON(in.CompletedCourses))},
	}
}

func analysisMessages(in ProgressInput) []Message {
	return []Message{
		{Role: RoleSystem, Content: analysisSystemPrompt},
		{Role: RoleUser, Content: fmt.Sprintf(analysisUserPrompt, promptJSON(in.Progress), promptJSON(in.Assessments))},
	}
}

func learningPathMessages(in LearningPathInput) []Message {
	return []Message{
		{Role: RoleSystem, Content: learningPathSystemPrompt},
		{Role: RoleUser, Content: fmt.Sprintf(learningPathUserPrompt,
			strings.Join(in.Goals, ", "), in.SkillLevel, in.HoursPerWeek)},
	}
}

// promptJSON renders v for prompt interpolation; values here are plain data.
func promptJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
