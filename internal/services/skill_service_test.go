package services

import (
	"testing"

	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillCatalog(t *testing.T) {
	f := newFixture(t)

	tech, err := f.skills.CreateCategory(f.org.ID, f.admin.ID, CategoryInput{Name: "Technical"})
	require.NoError(t, err)
	soft, err := f.skills.CreateCategory(f.org.ID, f.admin.ID, CategoryInput{Name: "Soft skills"})
	require.NoError(t, err)

	_, err = f.skills.CreateCategory(f.org.ID, f.admin.ID, CategoryInput{Name: "Technical"})
	assert.ErrorIs(t, err, ErrConflict)

	goSkill, err := f.skills.CreateSkill(f.org.ID, f.admin.ID, SkillInput{CategoryID: tech.ID, Name: "Go"})
	require.NoError(t, err)
	assert.Equal(t, "Technical", goSkill.CategoryName)
	_, err = f.skills.CreateSkill(f.org.ID, f.admin.ID, SkillInput{CategoryID: soft.ID, Name: "Negotiation"})
	require.NoError(t, err)

	_, err = f.skills.CreateSkill(f.org.ID, f.admin.ID, SkillInput{CategoryID: soft.ID, Name: "Go"})
	assert.ErrorIs(t, err, ErrConflict)

	techSkills, err := f.skills.ListSkills(f.org.ID, tech.ID)
	require.NoError(t, err)
	require.Len(t, techSkills, 1)
	assert.Equal(t, "Go", techSkills[0].Name)

	categories, err := f.skills.ListCategories(f.org.ID)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Soft skills", categories[0].Name)
	assert.Equal(t, 1, categories[0].SkillCount)

	err = f.skills.DeleteCategory(f.org.ID, f.admin.ID, tech.ID)
	assert.ErrorIs(t, err, ErrConflict, "category still has skills")

	moved, err := f.skills.UpdateSkill(f.org.ID, f.admin.ID, goSkill.ID, SkillInput{CategoryID: soft.ID, Name: "Go"})
	require.NoError(t, err)
	assert.Equal(t, soft.ID, moved.CategoryID)

	require.NoError(t, f.skills.DeleteCategory(f.org.ID, f.admin.ID, tech.ID))
	require.NoError(t, f.skills.DeleteSkill(f.org.ID, f.admin.ID, goSkill.ID))
	_, err = f.skills.GetSkillByID(f.org.ID, goSkill.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSkillCategoryMustBelongToOrganization(t *testing.T) {
	f := newFixture(t)
	other, otherAdmin, err := f.orgs.CreateOrganization(OrganizationInput{Name: "Globex", Slug: "globex", AdminEmail: "boss@globex.test", AdminName: "Boss"})
	require.NoError(t, err)
	foreign, err := f.skills.CreateCategory(other.ID, otherAdmin.ID, CategoryInput{Name: "Foreign"})
	require.NoError(t, err)

	_, err = f.skills.CreateSkill(f.org.ID, f.admin.ID, SkillInput{CategoryID: foreign.ID, Name: "Go"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.skills.CreateSkill(f.org.ID, f.admin.ID, SkillInput{Name: "Go"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestReplaceCompetencies(t *testing.T) {
	f := newFixture(t)
	goSkill := f.addSkill(t, "Go")
	sqlSkill := f.addSkill(t, "SQL")

	role, err := f.roles.CreateJobRole(f.org.ID, f.admin.ID, JobRoleInput{Title: "Backend Engineer"})
	require.NoError(t, err)
	_, err = f.roles.CreateJobRole(f.org.ID, f.admin.ID, JobRoleInput{Title: "Backend Engineer"})
	assert.ErrorIs(t, err, ErrConflict)

	role, err = f.roles.ReplaceCompetencies(f.org.ID, f.admin.ID, role.ID, []CompetencyInput{
		{SkillID: goSkill.ID, RequiredLevel: models.LevelExpert},
		{SkillID: sqlSkill.ID, RequiredLevel: models.LevelBeginner},
	})
	require.NoError(t, err)
	require.Len(t, role.Competencies, 2)
	assert.Equal(t, "Go", role.Competencies[0].SkillName)
	assert.Equal(t, models.LevelExpert, role.Competencies[0].RequiredLevel)

	_, err = f.roles.ReplaceCompetencies(f.org.ID, f.admin.ID, role.ID, []CompetencyInput{
		{SkillID: goSkill.ID, RequiredLevel: models.LevelBeginner},
		{SkillID: goSkill.ID, RequiredLevel: models.LevelAdvanced},
	})
	assert.ErrorIs(t, err, ErrInvalid)

	other, otherAdmin, err := f.orgs.CreateOrganization(OrganizationInput{Name: "Globex", Slug: "globex", AdminEmail: "boss@globex.test", AdminName: "Boss"})
	require.NoError(t, err)
	cat, err := f.skills.CreateCategory(other.ID, otherAdmin.ID, CategoryInput{Name: "Foreign"})
	require.NoError(t, err)
	foreign, err := f.skills.CreateSkill(other.ID, otherAdmin.ID, SkillInput{CategoryID: cat.ID, Name: "Cobol"})
	require.NoError(t, err)

	_, err = f.roles.ReplaceCompetencies(f.org.ID, f.admin.ID, role.ID, []CompetencyInput{
		{SkillID: sqlSkill.ID, RequiredLevel: models.LevelAdvanced},
		{SkillID: foreign.ID, RequiredLevel: models.LevelAdvanced},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	// Rejected replacements leave the framework untouched.
	role, err = f.roles.GetJobRole(f.org.ID, role.ID)
	require.NoError(t, err)
	require.Len(t, role.Competencies, 2)

	role, err = f.roles.ReplaceCompetencies(f.org.ID, f.admin.ID, role.ID, []CompetencyInput{
		{SkillID: sqlSkill.ID, RequiredLevel: models.LevelAdvanced},
	})
	require.NoError(t, err)
	require.Len(t, role.Competencies, 1)
	assert.Equal(t, models.LevelAdvanced, role.Competencies[0].RequiredLevel)
}
