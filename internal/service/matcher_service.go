package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
	"github.com/classly/scheduling-engine/pkg/config"
	appErrors "github.com/classly/scheduling-engine/pkg/errors"
)

// MatcherService pairs a single student with the best available teacher and
// slot. It reuses the engine's scoring primitives and adds teacher-specific
// dimensions on top.
type MatcherService struct {
	cfg          config.MatchingConfig
	engineCfg    config.EngineConfig
	progress     progressStore
	availability availabilityStore
	bookings     bookingStore
	catalog      contentCatalog
	constraints  *ConstraintService
	scorer       *ScoringService
	notifier     notifier
	logger       *zap.Logger
}

// NewMatcherService constructs the auto-matcher.
func NewMatcherService(
	cfg config.MatchingConfig,
	engineCfg config.EngineConfig,
	progress progressStore,
	availability availabilityStore,
	bookings bookingStore,
	catalog contentCatalog,
	constraints *ConstraintService,
	scorer *ScoringService,
	dispatcher notifier,
	logger *zap.Logger,
) *MatcherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatcherService{
		cfg:          cfg,
		engineCfg:    engineCfg,
		progress:     progress,
		availability: availability,
		bookings:     bookings,
		catalog:      catalog,
		constraints:  constraints,
		scorer:       scorer,
		notifier:     dispatcher,
		logger:       logger,
	}
}

// Match produces ranked booking recommendations for the request. The top
// option is committed immediately when auto-confirm applies; otherwise all
// ranked options plus alternatives are returned for manual confirmation.
func (s *MatcherService) Match(ctx context.Context, request models.OneOnOneBookingRequest) (*models.OneOnOneBookingResult, error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.StudentID == "" || request.CourseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student and course are required")
	}
	if request.Duration <= 0 {
		request.Duration = 30 * time.Minute
	}

	progress, err := s.progress.GetStudentProgress(ctx, request.StudentID, request.CourseID)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student or course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrCollaborator, "loading student progress")
	}
	next, err := s.catalog.NextUnlearned(ctx, progress, 3)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog.CourseContent(ctx, request.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCollaborator, "loading course content")
	}

	profiles, err := s.availability.ListTeacherProfiles(ctx, request.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCollaborator, "loading teacher profiles")
	}
	if len(profiles) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoFeasibleCandidate, "no teachers registered for course")
	}
	if request.PreferredTeacherID != "" && !request.Flexibility.FlexibleTeacher {
		profiles = filterProfiles(profiles, request.PreferredTeacherID)
		if len(profiles) == 0 {
			return nil, appErrors.Clone(appErrors.ErrNoFeasibleCandidate, "preferred teacher does not teach this course")
		}
	}

	now := time.Now().UTC()
	horizon := time.Duration(maxInt(s.engineCfg.MaxAdvanceBookingDays, 14)) * 24 * time.Hour
	existing, err := s.bookings.ListByDateRange(ctx, now, now.Add(horizon))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCollaborator, "loading existing bookings")
	}

	constraints := models.SchedulingConstraints{
		MaxStudentsPerClass:            1,
		MaxConcurrentClassesPerTeacher: s.engineCfg.MaxConcurrentClassesPerTeacher,
		MaxClassesPerDayPerStudent:     s.engineCfg.MaxClassesPerDayPerStudent,
		MinBreakBetweenClasses:         s.engineCfg.MinBreakBetweenClasses,
		MinAdvanceBookingHours:         s.engineCfg.MinAdvanceBookingHours,
		MaxAdvanceBookingDays:          s.engineCfg.MaxAdvanceBookingDays,
		WorkingHours: models.WorkingHours{
			StartMinute: s.engineCfg.WorkingHoursStart,
			EndMinute:   s.engineCfg.WorkingHoursEnd,
		},
	}

	var ranked []models.OneOnOneBookingRecommendation
	availabilityByTeacher := make(map[string]models.TeacherAvailability)

	for _, profile := range profiles {
		availability, err := s.availability.GetTeacherAvailability(ctx, profile.TeacherID, now, now.Add(horizon))
		if err != nil {
			if appErrors.Is(err, appErrors.ErrNotFound) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrCollaborator, "loading teacher availability")
		}
		availabilityByTeacher[profile.TeacherID] = *availability

		for _, slot := range s.candidateSlots(&request, availability, now) {
			candidate := s.buildCandidate(&request, profile.TeacherID, slot, next, now)
			ok, _ := s.constraints.Evaluate(candidate, constraints, EvaluationContext{
				Now:              now,
				ExistingBookings: existing,
				Availability:     availabilityByTeacher,
			})
			if !ok {
				continue
			}
			score := s.scoreTeacher(candidate, profile, progress, next, catalog)
			class := candidate
			ranked = append(ranked, models.OneOnOneBookingRecommendation{
				Teacher: profile,
				Score:   score,
				Class:   &class,
			})
		}
	}

	if len(ranked) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoFeasibleCandidate, "")
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Score, ranked[j].Score
		if a.Overall != b.Overall {
			return a.Overall > b.Overall
		}
		if !a.Slot.StartTime.Equal(b.Slot.StartTime) {
			return a.Slot.StartTime.Before(b.Slot.StartTime)
		}
		return a.TeacherID < b.TeacherID
	})
	if max := s.cfg.MaxCandidates; max > 0 && len(ranked) > max {
		ranked = ranked[:max]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	result := &models.OneOnOneBookingResult{
		RequestID:       request.ID,
		Recommendations: ranked,
		CreatedAt:       now,
	}

	top := &result.Recommendations[0]
	if request.AutoConfirm && top.Score.BookingSuccessProbability >= s.cfg.AutoConfirmThreshold {
		if err := s.bookings.Create(ctx, top.Class); err != nil {
			if !appErrors.Is(err, appErrors.ErrConflict) && !appErrors.Is(err, appErrors.ErrCapacityExceeded) {
				return nil, appErrors.Wrap(err, appErrors.ErrCollaborator, "committing booking")
			}
			s.logger.Info("auto-confirm lost a commit race, returning options for manual confirmation",
				zap.String("request_id", request.ID),
				zap.String("teacher_id", top.Teacher.TeacherID))
		} else {
			top.AutoConfirmed = true
			if s.notifier != nil {
				s.notifier.Notify(models.Notification{
					Kind:       models.NotificationScheduleReady,
					Recipients: []string{request.StudentID, top.Teacher.TeacherID},
					Subject:    "one-on-one class booked",
					Payload:    top.Class,
					CreatedAt:  time.Now().UTC(),
				})
			}
			return result, nil
		}
	}

	result.Alternatives = s.alternatives(&request, ranked, availabilityByTeacher, now)
	return result, nil
}

func filterProfiles(profiles []models.TeacherProfile, teacherID string) []models.TeacherProfile {
	var filtered []models.TeacherProfile
	for _, profile := range profiles {
		if profile.TeacherID == teacherID {
			filtered = append(filtered, profile)
		}
	}
	return filtered
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// candidateSlots cuts request-length slots out of the teacher's bookable
// time, honoring preferred slots first.
func (s *MatcherService) candidateSlots(request *models.OneOnOneBookingRequest, availability *models.TeacherAvailability, now time.Time) []models.TimeSlot {
	var slots []models.TimeSlot
	if len(request.PreferredSlots) > 0 {
		for _, slot := range request.PreferredSlots {
			if availability.IsAvailableAt(slot) {
				slots = append(slots, slot)
			}
		}
		if len(slots) > 0 || !request.Flexibility.FlexibleTime {
			return slots
		}
	}
	for _, slot := range availability.AvailableSlots {
		if !slot.IsAvailable || !slot.StartTime.After(now) {
			continue
		}
		if slot.Duration() < request.Duration {
			continue
		}
		cut := slot
		cut.EndTime = cut.StartTime.Add(request.Duration)
		slots = append(slots, cut)
	}
	return slots
}

func (s *MatcherService) buildCandidate(request *models.OneOnOneBookingRequest, teacherID string, slot models.TimeSlot, next []models.LearningContent, now time.Time) models.ScheduledClass {
	var contentIDs []string
	for _, content := range next {
		contentIDs = append(contentIDs, content.ID)
	}
	if slot.Capacity.MaxStudents == 0 {
		slot.Capacity.MaxStudents = 1
	}
	return models.ScheduledClass{
		ID:         uuid.NewString(),
		CourseID:   request.CourseID,
		TeacherID:  teacherID,
		StudentIDs: []string{request.StudentID},
		Slot:       slot,
		ContentIDs: contentIDs,
		Type:       models.ClassTypeIndividual,
		Status:     models.ClassStatusScheduled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// scoreTeacher blends the shared soft score with teacher-specific
// dimensions: experience, specialization, historical performance and
// continuity with the student's recent teachers.
func (s *MatcherService) scoreTeacher(candidate models.ScheduledClass, profile models.TeacherProfile, progress *models.StudentProgress, next []models.LearningContent, catalog map[string]models.LearningContent) models.TeacherMatchingScore {
	base := s.scorer.Score(candidate, DefaultScoringWeights(), ScoringContext{
		Progress:    progress,
		NextContent: next,
		Catalog:     catalog,
	})

	experience := clamp01(float64(profile.YearsExperience) / 10.0)
	rating := clamp01(profile.AverageRating / 5.0)
	completion := clamp01(profile.CompletionRate)
	specialization := 0.5
	if len(profile.Specializations) > 0 {
		specialization = 0.0
		for _, spec := range profile.Specializations {
			if spec == candidate.CourseID {
				specialization = 1.0
				break
			}
		}
	}

	dimensions := map[string]float64{
		"schedule_fit":   base.Total,
		"experience":     experience,
		"specialization": specialization,
		"rating":         rating,
		"completion":     completion,
	}

	overall := 0.40*base.Total + 0.15*experience + 0.15*specialization + 0.15*rating + 0.15*completion

	// Historical completion is the strongest predictor of the booking
	// actually happening.
	probability := clamp01(0.5*overall + 0.5*completion)

	return models.TeacherMatchingScore{
		TeacherID:                 profile.TeacherID,
		Slot:                      candidate.Slot,
		Overall:                   clamp01(overall),
		Dimensions:                dimensions,
		BookingSuccessProbability: probability,
	}
}

// alternatives assembles the fallback trade-offs the requester's
// flexibility flags allow.
func (s *MatcherService) alternatives(request *models.OneOnOneBookingRequest, ranked []models.OneOnOneBookingRecommendation, availability map[string]models.TeacherAvailability, now time.Time) *models.AlternativeBookingOptions {
	options := &models.AlternativeBookingOptions{Waitlist: true}

	if request.Flexibility.FlexibleTime {
		seen := make(map[string]bool)
		for _, rec := range ranked {
			teacherAvail, ok := availability[rec.Teacher.TeacherID]
			if !ok {
				continue
			}
			for _, slot := range teacherAvail.AvailableSlots {
				if !slot.IsAvailable || !slot.StartTime.After(now) || seen[slot.ID] {
					continue
				}
				seen[slot.ID] = true
				options.FlexibleTimeOptions = append(options.FlexibleTimeOptions, slot)
				if len(options.FlexibleTimeOptions) == 5 {
					break
				}
			}
			if len(options.FlexibleTimeOptions) == 5 {
				break
			}
		}
	}

	if request.Flexibility.FlexibleTeacher {
		for _, rec := range ranked {
			if rec.Teacher.TeacherID == request.PreferredTeacherID {
				continue
			}
			options.FlexibleTeacherOptions = append(options.FlexibleTeacherOptions, rec.Score)
			if len(options.FlexibleTeacherOptions) == 3 {
				break
			}
		}
	}

	if request.Flexibility.FlexibleDuration {
		for _, d := range []time.Duration{15 * time.Minute, 45 * time.Minute, 60 * time.Minute} {
			if d != request.Duration {
				options.FlexibleDurationOptions = append(options.FlexibleDurationOptions, d)
			}
		}
	}

	return options
}
