package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
	appErrors "github.com/classly/scheduling-engine/pkg/errors"
)

type mockContentLister struct {
	contents map[string][]models.LearningContent
	calls    int
}

func (m *mockContentLister) ListByCourse(ctx context.Context, courseID string) ([]models.LearningContent, error) {
	m.calls++
	return m.contents[courseID], nil
}

func linearCourse() []models.LearningContent {
	return []models.LearningContent{
		{ID: "L3", CourseID: "course-1", UnitNumber: 2, LessonNumber: 1, Prerequisites: []string{"L2"}, EstimatedDuration: 25 * time.Minute},
		{ID: "L1", CourseID: "course-1", UnitNumber: 1, LessonNumber: 1, EstimatedDuration: 25 * time.Minute},
		{ID: "L2", CourseID: "course-1", UnitNumber: 1, LessonNumber: 2, Prerequisites: []string{"L1"}, EstimatedDuration: 25 * time.Minute},
	}
}

func TestContentCatalogNextUnlearnedFollowsPrerequisites(t *testing.T) {
	lister := &mockContentLister{contents: map[string][]models.LearningContent{"course-1": linearCourse()}}
	svc := NewContentCatalogService(lister, nil, zap.NewNop())

	progress := &models.StudentProgress{
		StudentID:        "s1",
		CourseID:         "course-1",
		UnlearnedContent: []string{"L1", "L2", "L3"},
	}
	next, err := svc.NextUnlearned(context.Background(), progress, 2)
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, "L1", next[0].ID)
	assert.Equal(t, "L2", next[1].ID)
}

func TestContentCatalogNextUnlearnedSkipsBlockedItems(t *testing.T) {
	lister := &mockContentLister{contents: map[string][]models.LearningContent{"course-1": linearCourse()}}
	svc := NewContentCatalogService(lister, nil, zap.NewNop())

	// L2 is not unlearned and not completed, so L3 stays blocked.
	progress := &models.StudentProgress{
		StudentID:        "s1",
		CourseID:         "course-1",
		UnlearnedContent: []string{"L3"},
	}
	next, err := svc.NextUnlearned(context.Background(), progress, 5)
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestContentCatalogNextUnlearnedResumesAfterCompletion(t *testing.T) {
	lister := &mockContentLister{contents: map[string][]models.LearningContent{"course-1": linearCourse()}}
	svc := NewContentCatalogService(lister, nil, zap.NewNop())

	progress := &models.StudentProgress{
		StudentID:        "s1",
		CourseID:         "course-1",
		CompletedContent: []string{"L1", "L2"},
		UnlearnedContent: []string{"L3"},
	}
	next, err := svc.NextUnlearned(context.Background(), progress, 5)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "L3", next[0].ID)
}

func TestContentCatalogRejectsCyclicPrerequisites(t *testing.T) {
	lister := &mockContentLister{contents: map[string][]models.LearningContent{
		"course-1": {
			{ID: "A", CourseID: "course-1", Prerequisites: []string{"B"}},
			{ID: "B", CourseID: "course-1", Prerequisites: []string{"A"}},
		},
	}}
	svc := NewContentCatalogService(lister, nil, zap.NewNop())

	_, err := svc.CourseContent(context.Background(), "course-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvariant))
}

func TestContentCatalogRejectsUnknownPrerequisites(t *testing.T) {
	lister := &mockContentLister{contents: map[string][]models.LearningContent{
		"course-1": {{ID: "A", CourseID: "course-1", Prerequisites: []string{"ghost"}}},
	}}
	svc := NewContentCatalogService(lister, nil, zap.NewNop())

	_, err := svc.CourseContent(context.Background(), "course-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvariant))
}

func TestContentCatalogUnknownCourse(t *testing.T) {
	lister := &mockContentLister{contents: map[string][]models.LearningContent{}}
	svc := NewContentCatalogService(lister, nil, zap.NewNop())

	_, err := svc.CourseContent(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestContentCatalogCachesGraphUntilInvalidated(t *testing.T) {
	lister := &mockContentLister{contents: map[string][]models.LearningContent{"course-1": linearCourse()}}
	svc := NewContentCatalogService(lister, nil, zap.NewNop())

	_, err := svc.CourseContent(context.Background(), "course-1")
	require.NoError(t, err)
	_, err = svc.CourseContent(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, 1, lister.calls)

	svc.Invalidate("course-1")
	_, err = svc.CourseContent(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, 2, lister.calls)
}

func TestContentCatalogMissingPrerequisites(t *testing.T) {
	lister := &mockContentLister{contents: map[string][]models.LearningContent{"course-1": linearCourse()}}
	svc := NewContentCatalogService(lister, nil, zap.NewNop())

	missing, err := svc.MissingPrerequisites(context.Background(), "course-1", []string{"L3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"L2"}, missing)

	missing, err = svc.MissingPrerequisites(context.Background(), "course-1", []string{"L2", "L3"}, []string{"L1"})
	require.NoError(t, err)
	assert.Empty(t, missing)
}
