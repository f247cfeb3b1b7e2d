package models

// SkillLevel is a named proficiency level.
type SkillLevel string

const (
	LevelBeginner     SkillLevel = "BEGINNER"
	LevelIntermediate SkillLevel = "INTERMEDIATE"
	LevelAdvanced     SkillLevel = "ADVANCED"
	LevelExpert       SkillLevel = "EXPERT"
)

var levelRanks = map[SkillLevel]int{
	LevelBeginner:     1,
	LevelIntermediate: 2,
	LevelAdvanced:     3,
	LevelExpert:       4,
}

// Rank maps a level onto the 1..4 numeric scale used by gap arithmetic.
// Unknown levels rank 0.
func (l SkillLevel) Rank() int {
	return levelRanks[l]
}

// IsValid reports whether l is one of the defined levels.
func (l SkillLevel) IsValid() bool {
	_, ok := levelRanks[l]
	return ok
}

// LevelFromRank is the inverse of Rank.
func LevelFromRank(rank int) (SkillLevel, bool) {
	for level, r := range levelRanks {
		if r == rank {
			return level, true
		}
	}
	return "", false
}

// MaxLevel returns the higher of two levels. A nil current yields target.
func MaxLevel(current *SkillLevel, target SkillLevel) SkillLevel {
	if current == nil || current.Rank() < target.Rank() {
		return target
	}
	return *current
}
