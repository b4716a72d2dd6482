package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
	appErrors "github.com/classly/scheduling-engine/pkg/errors"
)

type contentLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.LearningContent, error)
}

// ContentCatalogService serves course content and its prerequisite graph.
// Prerequisites are validated to form a DAG at ingestion time, so scheduling
// never has to worry about cycles.
type ContentCatalogService struct {
	contents contentLister
	cache    *CacheService
	logger   *zap.Logger

	mu      sync.RWMutex
	courses map[string]*courseGraph
}

type courseGraph struct {
	byID  map[string]models.LearningContent
	order []string // topological, curriculum-stable
}

// NewContentCatalogService constructs the catalog.
func NewContentCatalogService(contents contentLister, cache *CacheService, logger *zap.Logger) *ContentCatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentCatalogService{
		contents: contents,
		cache:    cache,
		logger:   logger,
		courses:  make(map[string]*courseGraph),
	}
}

// CourseContent returns the ingested content map for a course, loading and
// validating it on first use.
func (s *ContentCatalogService) CourseContent(ctx context.Context, courseID string) (map[string]models.LearningContent, error) {
	graph, err := s.graphFor(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return graph.byID, nil
}

// NextUnlearned returns up to n of the student's unlearned content items in
// prerequisite-respecting curriculum order. Items whose prerequisites are not
// all completed or in the returned prefix are skipped.
func (s *ContentCatalogService) NextUnlearned(ctx context.Context, progress *models.StudentProgress, n int) ([]models.LearningContent, error) {
	graph, err := s.graphFor(ctx, progress.CourseID)
	if err != nil {
		return nil, err
	}

	unlearned := make(map[string]struct{}, len(progress.UnlearnedContent))
	for _, id := range progress.UnlearnedContent {
		unlearned[id] = struct{}{}
	}
	ready := make(map[string]struct{}, len(progress.CompletedContent))
	for _, id := range progress.CompletedContent {
		ready[id] = struct{}{}
	}

	var result []models.LearningContent
	for _, id := range graph.order {
		if len(result) >= n {
			break
		}
		if _, isUnlearned := unlearned[id]; !isUnlearned {
			continue
		}
		content := graph.byID[id]
		satisfied := true
		for _, prereq := range content.Prerequisites {
			if _, ok := ready[prereq]; !ok {
				satisfied = false
				break
			}
		}
		if !satisfied {
			continue
		}
		result = append(result, content)
		ready[id] = struct{}{}
	}
	return result, nil
}

// MissingPrerequisites returns prerequisite IDs of the given content items
// that are neither completed nor part of the content list itself.
func (s *ContentCatalogService) MissingPrerequisites(ctx context.Context, courseID string, contentIDs, completed []string) ([]string, error) {
	graph, err := s.graphFor(ctx, courseID)
	if err != nil {
		return nil, err
	}
	covered := make(map[string]struct{}, len(contentIDs)+len(completed))
	for _, id := range contentIDs {
		covered[id] = struct{}{}
	}
	for _, id := range completed {
		covered[id] = struct{}{}
	}

	var missing []string
	seen := make(map[string]struct{})
	for _, id := range contentIDs {
		content, ok := graph.byID[id]
		if !ok {
			continue
		}
		for _, prereq := range content.Prerequisites {
			if _, ok := covered[prereq]; ok {
				continue
			}
			if _, dup := seen[prereq]; dup {
				continue
			}
			seen[prereq] = struct{}{}
			missing = append(missing, prereq)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

// Invalidate drops the ingested graph for a course, forcing a reload.
func (s *ContentCatalogService) Invalidate(courseID string) {
	s.mu.Lock()
	delete(s.courses, courseID)
	s.mu.Unlock()
}

// InvalidateAll drops every ingested graph. Used by the daily refresh.
func (s *ContentCatalogService) InvalidateAll() {
	s.mu.Lock()
	s.courses = make(map[string]*courseGraph)
	s.mu.Unlock()
}

func (s *ContentCatalogService) graphFor(ctx context.Context, courseID string) (*courseGraph, error) {
	s.mu.RLock()
	graph, ok := s.courses[courseID]
	s.mu.RUnlock()
	if ok {
		return graph, nil
	}

	var contents []models.LearningContent
	cacheKey := fmt.Sprintf("scheduling:content:%s", courseID)
	if hit, _ := s.cache.Get(ctx, cacheKey, &contents); !hit {
		var err error
		contents, err = s.contents.ListByCourse(ctx, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCollaborator, "failed to load course content")
		}
		s.cache.Set(ctx, cacheKey, contents)
	}
	if len(contents) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %s has no content", courseID))
	}

	graph, err := buildCourseGraph(contents)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.courses[courseID] = graph
	s.mu.Unlock()
	return graph, nil
}

// buildCourseGraph validates the prerequisite DAG and computes a stable
// topological order (Kahn's algorithm, curriculum order as tie-break).
func buildCourseGraph(contents []models.LearningContent) (*courseGraph, error) {
	byID := make(map[string]models.LearningContent, len(contents))
	for _, content := range contents {
		byID[content.ID] = content
	}

	indegree := make(map[string]int, len(byID))
	dependents := make(map[string][]string, len(byID))
	for _, content := range contents {
		if _, ok := indegree[content.ID]; !ok {
			indegree[content.ID] = 0
		}
		for _, prereq := range content.Prerequisites {
			if _, ok := byID[prereq]; !ok {
				return nil, appErrors.Clone(appErrors.ErrInvariant, fmt.Sprintf("content %s references unknown prerequisite %s", content.ID, prereq))
			}
			indegree[content.ID]++
			dependents[prereq] = append(dependents[prereq], content.ID)
		}
	}

	frontier := make([]string, 0, len(byID))
	for _, content := range contents {
		if indegree[content.ID] == 0 {
			frontier = append(frontier, content.ID)
		}
	}
	sortCurriculum(frontier, byID)

	order := make([]string, 0, len(byID))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		released := false
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				frontier = append(frontier, next)
				released = true
			}
		}
		if released {
			sortCurriculum(frontier, byID)
		}
	}

	if len(order) != len(byID) {
		return nil, appErrors.Clone(appErrors.ErrInvariant, "prerequisite graph contains a cycle")
	}
	return &courseGraph{byID: byID, order: order}, nil
}

func sortCurriculum(ids []string, byID map[string]models.LearningContent) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := byID[ids[i]], byID[ids[j]]
		if a.UnitNumber != b.UnitNumber {
			return a.UnitNumber < b.UnitNumber
		}
		if a.LessonNumber != b.LessonNumber {
			return a.LessonNumber < b.LessonNumber
		}
		return a.ID < b.ID
	})
}
