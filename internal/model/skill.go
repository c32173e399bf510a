package model

import "time"

// Proficiency levels a builder can claim for a skill.
const (
	ProficiencyBeginner     = "beginner"
	ProficiencyIntermediate = "intermediate"
	ProficiencyAdvanced     = "advanced"
	ProficiencyExpert       = "expert"
)

// Skill is an entry in the shared catalog. Names are unique ignoring case.
type Skill struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserSkill is a catalog skill on someone's profile. ProficiencyLevel is
// empty and YearsOfExperience nil when the builder didn't say.
type UserSkill struct {
	SkillID           string `json:"skillId"`
	Name              string `json:"name"`
	Category          string `json:"category"`
	ProficiencyLevel  string `json:"proficiencyLevel,omitempty"`
	YearsOfExperience *int   `json:"yearsOfExperience,omitempty"`
}
