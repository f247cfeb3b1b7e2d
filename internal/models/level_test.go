package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkillLevelRank(t *testing.T) {
	assert.Equal(t, 1, LevelBeginner.Rank())
	assert.Equal(t, 2, LevelIntermediate.Rank())
	assert.Equal(t, 3, LevelAdvanced.Rank())
	assert.Equal(t, 4, LevelExpert.Rank())
	assert.Equal(t, 0, SkillLevel("GURU").Rank())
	assert.False(t, SkillLevel("GURU").IsValid())

	level, ok := LevelFromRank(3)
	assert.True(t, ok)
	assert.Equal(t, LevelAdvanced, level)

	_, ok = LevelFromRank(9)
	assert.False(t, ok)
}

func TestMaxLevel(t *testing.T) {
	adv := LevelAdvanced
	assert.Equal(t, LevelIntermediate, MaxLevel(nil, LevelIntermediate))
	assert.Equal(t, LevelAdvanced, MaxLevel(&adv, LevelIntermediate))
	assert.Equal(t, LevelExpert, MaxLevel(&adv, LevelExpert))
}

func TestQuestionOptionsRoundTrip(t *testing.T) {
	q := Question{Options: []string{"a", "b"}}
	q.PrepareForSave()
	assert.Equal(t, `["a","b"]`, q.OptionsJSON)

	loaded := Question{OptionsJSON: q.OptionsJSON, CorrectAnswer: "a"}
	loaded.PrepareForAPI()
	assert.Equal(t, []string{"a", "b"}, loaded.Options)
	assert.Empty(t, loaded.Redacted().CorrectAnswer)
	assert.Equal(t, "a", loaded.CorrectAnswer)
}
