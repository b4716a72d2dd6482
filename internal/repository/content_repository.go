package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/classly/scheduling-engine/internal/models"
)

// ContentRepository reads course content from the content catalog store.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository constructs the repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

type learningContentRow struct {
	ID               string         `db:"id"`
	CourseID         string         `db:"course_id"`
	UnitNumber       int            `db:"unit_number"`
	LessonNumber     int            `db:"lesson_number"`
	Title            string         `db:"title"`
	Prerequisites    types.JSONText `db:"prerequisites"`
	Difficulty       int            `db:"difficulty"`
	RequiredSkills   types.JSONText `db:"required_skills"`
	EstimatedMinutes int            `db:"estimated_minutes"`
}

func (r learningContentRow) toModel() (models.LearningContent, error) {
	content := models.LearningContent{
		ID:                r.ID,
		CourseID:          r.CourseID,
		UnitNumber:        r.UnitNumber,
		LessonNumber:      r.LessonNumber,
		Title:             r.Title,
		Difficulty:        r.Difficulty,
		EstimatedDuration: time.Duration(r.EstimatedMinutes) * time.Minute,
	}
	if len(r.Prerequisites) > 0 {
		if err := json.Unmarshal(r.Prerequisites, &content.Prerequisites); err != nil {
			return content, fmt.Errorf("decode prerequisites for content %s: %w", r.ID, err)
		}
	}
	if len(r.RequiredSkills) > 0 {
		if err := json.Unmarshal(r.RequiredSkills, &content.RequiredSkills); err != nil {
			return content, fmt.Errorf("decode required skills for content %s: %w", r.ID, err)
		}
	}
	return content, nil
}

// ListByCourse returns every content item of a course in curriculum order.
func (r *ContentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.LearningContent, error) {
	const query = `SELECT id, course_id, unit_number, lesson_number, title, prerequisites, difficulty, required_skills, estimated_minutes
		FROM learning_content WHERE course_id = $1
		ORDER BY unit_number ASC, lesson_number ASC`
	var rows []learningContentRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list course content: %w", err)
	}
	contents := make([]models.LearningContent, 0, len(rows))
	for _, row := range rows {
		content, err := row.toModel()
		if err != nil {
			return nil, err
		}
		contents = append(contents, content)
	}
	return contents, nil
}
