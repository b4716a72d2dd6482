package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
	"github.com/classly/scheduling-engine/pkg/config"
	appErrors "github.com/classly/scheduling-engine/pkg/errors"
)

type progressStore interface {
	GetStudentProgress(ctx context.Context, studentID, courseID string) (*models.StudentProgress, error)
}

type availabilityStore interface {
	GetTeacherAvailability(ctx context.Context, teacherID string, from, to time.Time) (*models.TeacherAvailability, error)
	ListTeacherProfiles(ctx context.Context, courseID string) ([]models.TeacherProfile, error)
}

type bookingStore interface {
	Create(ctx context.Context, class *models.ScheduledClass) error
	FindByID(ctx context.Context, id string) (*models.ScheduledClass, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]models.ScheduledClass, error)
	CommitEnrollment(ctx context.Context, classID string, expectedVersion int, studentIDs []string) error
	UpdateStatus(ctx context.Context, classID string, from, to models.ClassStatus) error
}

type contentCatalog interface {
	CourseContent(ctx context.Context, courseID string) (map[string]models.LearningContent, error)
	NextUnlearned(ctx context.Context, progress *models.StudentProgress, n int) ([]models.LearningContent, error)
}

type notifier interface {
	Notify(notification models.Notification)
}

// requestEntry tracks one in-flight or recently finished request.
type requestEntry struct {
	status    models.RequestStatus
	result    *models.SchedulingResult
	cancel    context.CancelFunc
	expiresAt time.Time
}

// OrchestratorService drives a scheduling request through its lifecycle:
// analyzing, processing, optimizing, validating and a terminal state.
// Finished results are retained for polling until their TTL lapses.
type OrchestratorService struct {
	cfg          config.EngineConfig
	progress     progressStore
	availability availabilityStore
	bookings     bookingStore
	catalog      contentCatalog
	constraints  *ConstraintService
	scorer       *ScoringService
	detector     *ConflictDetector
	resolver     *ConflictResolver
	notifier     notifier
	metrics      *MetricsService
	logger       *zap.Logger
	weights      ScoringWeights

	mu       sync.Mutex
	requests map[string]*requestEntry

	asyncCh chan models.SchedulingRequest
	wg      sync.WaitGroup
	done    chan struct{}
}

// NewOrchestratorService wires the engine pipeline together and starts the
// async worker pool.
func NewOrchestratorService(
	cfg config.EngineConfig,
	progress progressStore,
	availability availabilityStore,
	bookings bookingStore,
	catalog contentCatalog,
	constraints *ConstraintService,
	scorer *ScoringService,
	detector *ConflictDetector,
	resolver *ConflictResolver,
	dispatcher notifier,
	metrics *MetricsService,
	logger *zap.Logger,
) *OrchestratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.AsyncWorkers
	if workers <= 0 {
		workers = 2
	}
	s := &OrchestratorService{
		cfg:          cfg,
		progress:     progress,
		availability: availability,
		bookings:     bookings,
		catalog:      catalog,
		constraints:  constraints,
		scorer:       scorer,
		detector:     detector,
		resolver:     resolver,
		notifier:     dispatcher,
		metrics:      metrics,
		logger:       logger,
		weights:      DefaultScoringWeights(),
		requests:     make(map[string]*requestEntry),
		asyncCh:      make(chan models.SchedulingRequest, workers*4),
		done:         make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Close drains the async workers.
func (s *OrchestratorService) Close() {
	close(s.done)
	s.wg.Wait()
}

func (s *OrchestratorService) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case request := <-s.asyncCh:
			s.Submit(context.Background(), request)
		}
	}
}

// Submit runs a request synchronously and returns its result. Resubmitting
// an ID supersedes the earlier request: the prior run is cancelled.
func (s *OrchestratorService) Submit(ctx context.Context, request models.SchedulingRequest) *models.SchedulingResult {
	start := time.Now()

	if err := validateRequest(&request); err != nil {
		result := models.NewFailedResult(request.ID, models.StatusFailed, nil, nil, err)
		s.finish(&request, result, start)
		return result
	}

	budget := s.cfg.MaxProcessingTime
	if budget <= 0 {
		budget = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	s.register(request.ID, cancel)

	result := s.run(runCtx, &request)
	s.finish(&request, result, start)
	return result
}

// SubmitAsync enqueues the request and returns immediately. The result is
// later available through Status.
func (s *OrchestratorService) SubmitAsync(request models.SchedulingRequest) error {
	if err := validateRequest(&request); err != nil {
		return err
	}
	s.mu.Lock()
	s.requests[request.ID] = &requestEntry{status: models.StatusIdle, expiresAt: time.Now().Add(s.resultTTL())}
	s.mu.Unlock()

	select {
	case s.asyncCh <- request:
		return nil
	default:
		return appErrors.Clone(appErrors.ErrBudgetExceeded, "async queue is full")
	}
}

// Status returns the current status and, once terminal, the result.
func (s *OrchestratorService) Status(requestID string) (models.RequestStatus, *models.SchedulingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	entry, ok := s.requests[requestID]
	if !ok {
		return "", nil, appErrors.Clone(appErrors.ErrNotFound, "unknown request id")
	}
	return entry.status, entry.result, nil
}

// Cancel aborts an in-flight request. Terminal requests cannot be cancelled.
func (s *OrchestratorService) Cancel(requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.requests[requestID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "unknown request id")
	}
	if entry.status.Terminal() {
		return appErrors.Clone(appErrors.ErrConflict, "request already finished")
	}
	if entry.cancel != nil {
		entry.cancel()
	}
	return nil
}

func (s *OrchestratorService) register(requestID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	if prior, ok := s.requests[requestID]; ok && prior.cancel != nil && !prior.status.Terminal() {
		prior.cancel()
	}
	s.requests[requestID] = &requestEntry{
		status:    models.StatusAnalyzing,
		cancel:    cancel,
		expiresAt: time.Now().Add(s.resultTTL()),
	}
}

func (s *OrchestratorService) setStatus(requestID string, status models.RequestStatus) {
	s.mu.Lock()
	if entry, ok := s.requests[requestID]; ok {
		entry.status = status
	}
	s.mu.Unlock()
}

func (s *OrchestratorService) finish(request *models.SchedulingRequest, result *models.SchedulingResult, start time.Time) {
	result.Metrics.ProcessingTime = time.Since(start)

	s.mu.Lock()
	entry, ok := s.requests[request.ID]
	if !ok {
		entry = &requestEntry{}
		s.requests[request.ID] = entry
	}
	entry.status = result.Status
	entry.result = result
	entry.cancel = nil
	entry.expiresAt = time.Now().Add(s.resultTTL())
	s.mu.Unlock()

	s.metrics.ObserveRequest(request.Operation, result.Status)
	if s.notifier != nil && result.Success {
		s.notifier.Notify(models.Notification{
			Kind:      models.NotificationScheduleReady,
			Subject:   "scheduling request completed",
			Payload:   result,
			CreatedAt: time.Now().UTC(),
		})
	}
}

func (s *OrchestratorService) resultTTL() time.Duration {
	if s.cfg.ResultTTL > 0 {
		return s.cfg.ResultTTL
	}
	return time.Hour
}

func (s *OrchestratorService) evictLocked() {
	now := time.Now()
	for id, entry := range s.requests {
		if entry.status.Terminal() && now.After(entry.expiresAt) {
			delete(s.requests, id)
		}
	}
}

func validateRequest(request *models.SchedulingRequest) *appErrors.Error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if !request.Operation.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown scheduling operation")
	}
	if len(request.StudentIDs) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "request names no students")
	}
	if request.CourseID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "request names no course")
	}
	return nil
}

// schedulingContext is the per-request snapshot loaded during analyzing.
type schedulingContext struct {
	request      *models.SchedulingRequest
	constraints  models.SchedulingConstraints
	progress     map[string]*models.StudentProgress
	nextContent  map[string][]models.LearningContent
	catalog      map[string]models.LearningContent
	profiles     []models.TeacherProfile
	availability map[string]models.TeacherAvailability
	existing     []models.ScheduledClass
	now          time.Time
}

// run drives the request through the phases. Every operation variant shares
// this pipeline: the operation rides on the request and result for callers
// and metrics, while the request fields (preferred slots and content,
// overrides, priority) shape what each phase does.
func (s *OrchestratorService) run(ctx context.Context, request *models.SchedulingRequest) *models.SchedulingResult {
	metrics := models.SchedulingMetrics{}

	sctx, err := s.analyze(ctx, request)
	if err != nil {
		return s.terminalError(request.ID, err, &metrics)
	}

	candidates, blocked, err := s.process(ctx, sctx, &metrics)
	if err != nil {
		return s.terminalError(request.ID, err, &metrics)
	}
	if len(candidates) == 0 {
		failure := appErrors.Clone(appErrors.ErrNoFeasibleCandidate, "")
		if len(blocked) > 0 {
			failure = appErrors.Clone(appErrors.ErrCapacityExceeded, "every matching class is full")
		}
		return models.NewFailedResult(request.ID, models.StatusFailed, blocked,
			s.unscheduledRecommendations(sctx, nil), failure)
	}

	selected, unresolved, err := s.optimize(ctx, sctx, candidates, &metrics)
	if err != nil {
		return s.terminalError(request.ID, err, &metrics)
	}

	return s.validateAndCommit(ctx, sctx, selected, unresolved, blocked, &metrics)
}

// terminalError maps context and collaborator failures onto the taxonomy.
func (s *OrchestratorService) terminalError(requestID string, err error, metrics *models.SchedulingMetrics) *models.SchedulingResult {
	status := models.StatusFailed
	appErr := appErrors.FromError(err)
	switch {
	case errors.Is(err, context.Canceled):
		status = models.StatusCancelled
		appErr = appErrors.Clone(appErrors.ErrCancelled, "")
	case errors.Is(err, context.DeadlineExceeded):
		appErr = appErrors.Clone(appErrors.ErrBudgetExceeded, "")
	}
	result := models.NewFailedResult(requestID, status, nil, nil, appErr)
	result.Metrics = *metrics
	return result
}

func (s *OrchestratorService) analyze(ctx context.Context, request *models.SchedulingRequest) (*schedulingContext, error) {
	s.setStatus(request.ID, models.StatusAnalyzing)
	phaseStart := time.Now()
	defer func() { s.metrics.ObservePhase(models.StatusAnalyzing, time.Since(phaseStart)) }()

	now := time.Now().UTC()
	sctx := &schedulingContext{
		request:      request,
		constraints:  s.defaultConstraints().Merge(request.Overrides),
		progress:     make(map[string]*models.StudentProgress, len(request.StudentIDs)),
		nextContent:  make(map[string][]models.LearningContent, len(request.StudentIDs)),
		availability: make(map[string]models.TeacherAvailability),
		now:          now,
	}

	catalog, err := s.catalog.CourseContent(ctx, request.CourseID)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) || appErrors.Is(err, appErrors.ErrInvariant) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrCollaborator, "loading course content")
	}
	if len(catalog) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown course")
	}
	sctx.catalog = catalog

	for _, studentID := range request.StudentIDs {
		progress, err := s.progress.GetStudentProgress(ctx, studentID, request.CourseID)
		if err != nil {
			if appErrors.Is(err, appErrors.ErrNotFound) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student or course: "+studentID)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrCollaborator, "loading student progress")
		}
		sctx.progress[studentID] = progress

		next, err := s.catalog.NextUnlearned(ctx, progress, 5)
		if err != nil {
			return nil, err
		}
		sctx.nextContent[studentID] = next
	}

	profiles, err := s.availability.ListTeacherProfiles(ctx, request.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCollaborator, "loading teacher profiles")
	}
	if len(profiles) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no teachers registered for course")
	}
	sctx.profiles = profiles

	horizon := s.bookingHorizon(sctx.constraints)
	for _, profile := range profiles {
		availability, err := s.availability.GetTeacherAvailability(ctx, profile.TeacherID, now, now.Add(horizon))
		if err != nil {
			if appErrors.Is(err, appErrors.ErrNotFound) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrCollaborator, "loading teacher availability")
		}
		sctx.availability[profile.TeacherID] = *availability
	}

	existing, err := s.bookings.ListByDateRange(ctx, now, now.Add(horizon))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCollaborator, "loading existing bookings")
	}
	sctx.existing = existing

	return sctx, ctx.Err()
}

func (s *OrchestratorService) bookingHorizon(constraints models.SchedulingConstraints) time.Duration {
	days := constraints.MaxAdvanceBookingDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

func (s *OrchestratorService) defaultConstraints() models.SchedulingConstraints {
	return models.SchedulingConstraints{
		MaxStudentsPerClass:            s.cfg.MaxStudentsPerClass,
		MinStudentsForGroupClass:       s.cfg.MinStudentsForGroupClass,
		MaxConcurrentClassesPerTeacher: s.cfg.MaxConcurrentClassesPerTeacher,
		MaxClassesPerDayPerStudent:     s.cfg.MaxClassesPerDayPerStudent,
		MinBreakBetweenClasses:         s.cfg.MinBreakBetweenClasses,
		MinAdvanceBookingHours:         s.cfg.MinAdvanceBookingHours,
		MaxAdvanceBookingDays:          s.cfg.MaxAdvanceBookingDays,
		WorkingHours: models.WorkingHours{
			StartMinute: s.cfg.WorkingHoursStart,
			EndMinute:   s.cfg.WorkingHoursEnd,
		},
	}
}

// process generates candidates per student group and keeps only those that
// pass the hard constraints. Groups are clustered by shared next content and
// overlapping candidate slots. Existing classes whose only objection is a
// full roster come back as capacity conflicts instead of vanishing.
func (s *OrchestratorService) process(ctx context.Context, sctx *schedulingContext, metrics *models.SchedulingMetrics) ([]models.ScheduledClass, []models.SchedulingConflict, error) {
	s.setStatus(sctx.request.ID, models.StatusProcessing)
	phaseStart := time.Now()
	defer func() { s.metrics.ObservePhase(models.StatusProcessing, time.Since(phaseStart)) }()

	groups := s.clusterStudents(sctx)
	ectx := EvaluationContext{
		Now:              sctx.now,
		ExistingBookings: sctx.existing,
		Availability:     sctx.availability,
		Overrides:        sctx.request.ManualOverrides,
	}

	var survivors []models.ScheduledClass
	var blocked []models.SchedulingConflict
	blockedClasses := make(map[string]bool)
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for _, candidate := range s.generateCandidates(sctx, group) {
			metrics.CandidatesGenerated++
			ok, violations := s.constraints.Evaluate(candidate, sctx.constraints, ectx)
			if !ok {
				metrics.CandidatesDiscarded++
				if candidate.Version > 0 && hasCapacityViolation(violations) && !blockedClasses[candidate.ID] {
					blockedClasses[candidate.ID] = true
					blocked = append(blocked, s.fullClassConflict(sctx, candidate))
				}
				continue
			}
			if waived := waivedViolations(violations); len(waived) > 0 {
				annotateOverrides(&candidate, waived)
			}
			survivors = append(survivors, candidate)
		}
	}
	s.metrics.ObserveCandidates(metrics.CandidatesGenerated)
	metrics.ConflictsDetected += len(blocked)
	return survivors, blocked, nil
}

func hasCapacityViolation(violations []Violation) bool {
	for _, v := range violations {
		if v.Constraint == "capacity" && !v.Waived {
			return true
		}
	}
	return false
}

// fullClassConflict reports an existing class that matched the request but
// has no seat left, with ranked ways out attached.
func (s *OrchestratorService) fullClassConflict(sctx *schedulingContext, candidate models.ScheduledClass) models.SchedulingConflict {
	max := candidate.Slot.Capacity.MaxStudents
	if max <= 0 || max > models.MaxGroupClassSize {
		max = models.MaxGroupClassSize
	}
	severity := models.SeverityHigh
	if candidate.Status == models.ClassStatusConfirmed {
		severity = models.SeverityCritical
	}
	conflict := models.SchedulingConflict{
		ID:          uuid.NewString(),
		Type:        models.ConflictCapacityExceeded,
		Severity:    severity,
		ClassIDs:    []string{candidate.ID},
		TeacherIDs:  []string{candidate.TeacherID},
		StudentIDs:  append([]string(nil), candidate.StudentIDs...),
		Description: fmt.Sprintf("class %s is full: %d students would exceed capacity %d", candidate.ID, len(candidate.StudentIDs), max),
		DetectedAt:  sctx.now,
	}
	conflict.Resolutions = s.resolver.Resolve(conflict, ResolutionContext{
		Classes:          map[string]*models.ScheduledClass{candidate.ID: &candidate},
		Availability:     sctx.availability,
		ExistingBookings: sctx.existing,
		Constraints:      sctx.constraints,
		Now:              sctx.now,
	})
	return conflict
}

func waivedViolations(violations []Violation) []Violation {
	var waived []Violation
	for _, v := range violations {
		if v.Waived {
			waived = append(waived, v)
		}
	}
	return waived
}

// annotateOverrides records waived checks on the class metadata for audit.
func annotateOverrides(class *models.ScheduledClass, waived []Violation) {
	payload, err := json.Marshal(map[string]interface{}{"waived_constraints": waived})
	if err != nil {
		return
	}
	class.Metadata = payload
}

// clusterStudents groups students whose next unlearned content overlaps.
// Anything that doesn't cluster schedules individually.
func (s *OrchestratorService) clusterStudents(sctx *schedulingContext) [][]string {
	if len(sctx.request.StudentIDs) == 1 {
		return [][]string{sctx.request.StudentIDs}
	}

	head := func(studentID string) string {
		if next := sctx.nextContent[studentID]; len(next) > 0 {
			return next[0].ID
		}
		return ""
	}

	byHead := make(map[string][]string)
	var order []string
	for _, studentID := range sctx.request.StudentIDs {
		key := head(studentID)
		if _, ok := byHead[key]; !ok {
			order = append(order, key)
		}
		byHead[key] = append(byHead[key], studentID)
	}

	var groups [][]string
	for _, key := range order {
		members := byHead[key]
		if key == "" || len(members) < sctx.constraints.MinStudentsForGroupClass {
			for _, studentID := range members {
				groups = append(groups, []string{studentID})
			}
			continue
		}
		for len(members) > sctx.constraints.MaxStudentsPerClass {
			groups = append(groups, members[:sctx.constraints.MaxStudentsPerClass])
			members = members[sctx.constraints.MaxStudentsPerClass:]
		}
		if len(members) > 0 {
			groups = append(groups, members)
		}
	}
	return groups
}

// generateCandidates builds tentative classes for one student group across
// the teachers' bookable slots, or the request's preferred slots when given.
func (s *OrchestratorService) generateCandidates(sctx *schedulingContext, group []string) []models.ScheduledClass {
	contents := s.groupContent(sctx, group)

	classType := models.ClassTypeIndividual
	if len(group) > 1 {
		classType = models.ClassTypeGroup
	}

	var candidates []models.ScheduledClass
	appendCandidate := func(teacherID string, slot models.TimeSlot) {
		if !slot.Valid() {
			return
		}
		if slot.Capacity.MaxStudents == 0 {
			slot.Capacity.MaxStudents = sctx.constraints.MaxStudentsPerClass
		}
		candidates = append(candidates, models.ScheduledClass{
			ID:         uuid.NewString(),
			CourseID:   sctx.request.CourseID,
			TeacherID:  teacherID,
			StudentIDs: append([]string(nil), group...),
			Slot:       slot,
			ContentIDs: contents,
			Type:       classType,
			Status:     models.ClassStatusScheduled,
			CreatedAt:  sctx.now,
			UpdatedAt:  sctx.now,
		})
	}

	for teacherID, availability := range sctx.availability {
		if len(sctx.request.PreferredSlots) > 0 {
			for _, slot := range sctx.request.PreferredSlots {
				if availability.IsAvailableAt(slot) {
					appendCandidate(teacherID, slot)
				}
			}
			continue
		}
		for _, slot := range availability.AvailableSlots {
			if slot.IsAvailable && slot.StartTime.After(sctx.now) {
				appendCandidate(teacherID, slot)
			}
		}
	}

	// Existing classes for the course are candidates too: seating the group
	// in a partially-enrolled class keeps utilization up. Join candidates
	// keep the class's ID and version and commit through the versioned
	// enrollment path.
	for i := range sctx.existing {
		existing := &sctx.existing[i]
		if existing.CourseID != sctx.request.CourseID || existing.Status == models.ClassStatusCancelled {
			continue
		}
		if !existing.Slot.StartTime.After(sctx.now) {
			continue
		}
		if len(sctx.request.PreferredSlots) > 0 && !slotMatchesPreference(existing.Slot, sctx.request.PreferredSlots) {
			continue
		}
		if enrollsAny(existing, group) {
			continue
		}
		joined := *existing
		joined.Slot.Capacity.CurrentEnrollment = len(existing.StudentIDs)
		if joined.Slot.Capacity.MaxStudents == 0 {
			joined.Slot.Capacity.MaxStudents = sctx.constraints.MaxStudentsPerClass
		}
		joined.StudentIDs = append(append([]string(nil), existing.StudentIDs...), group...)
		joined.ContentIDs = append([]string(nil), existing.ContentIDs...)
		if len(joined.StudentIDs) > 1 {
			joined.Type = models.ClassTypeGroup
		}
		joined.UpdatedAt = sctx.now
		candidates = append(candidates, joined)
	}
	return candidates
}

func slotMatchesPreference(slot models.TimeSlot, preferred []models.TimeSlot) bool {
	for _, p := range preferred {
		if slot.Overlaps(p) {
			return true
		}
	}
	return false
}

func enrollsAny(class *models.ScheduledClass, studentIDs []string) bool {
	for _, id := range studentIDs {
		if class.HasStudent(id) {
			return true
		}
	}
	return false
}

// groupContent intersects the group's next unlearned content, falling back
// to the first member's when the intersection is empty.
func (s *OrchestratorService) groupContent(sctx *schedulingContext, group []string) []string {
	if len(sctx.request.PreferredContent) > 0 {
		return sctx.request.PreferredContent
	}
	if len(group) == 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, studentID := range group {
		for _, content := range sctx.nextContent[studentID] {
			if counts[content.ID] == 0 {
				order = append(order, content.ID)
			}
			counts[content.ID]++
		}
	}
	var shared []string
	for _, id := range order {
		if counts[id] == len(group) {
			shared = append(shared, id)
		}
	}
	if len(shared) > 0 {
		return shared
	}
	var fallback []string
	for _, content := range sctx.nextContent[group[0]] {
		fallback = append(fallback, content.ID)
	}
	return fallback
}

// optimize scores survivors, picks the best non-overlapping batch, and
// iterates conflict resolution up to the configured bound.
func (s *OrchestratorService) optimize(ctx context.Context, sctx *schedulingContext, candidates []models.ScheduledClass, metrics *models.SchedulingMetrics) ([]models.ScheduledClass, []models.SchedulingConflict, error) {
	s.setStatus(sctx.request.ID, models.StatusOptimizing)
	phaseStart := time.Now()
	defer func() { s.metrics.ObservePhase(models.StatusOptimizing, time.Since(phaseStart)) }()

	maxIterations := s.cfg.MaxOptimizationIterations
	if maxIterations <= 0 {
		maxIterations = 3
	}

	dctx := DetectionContext{
		Existing:     sctx.existing,
		Progress:     sctx.progress,
		Availability: sctx.availability,
		Catalog:      sctx.catalog,
		Now:          sctx.now,
	}

	var selected []models.ScheduledClass
	var unresolved []models.SchedulingConflict

	for iteration := 0; iteration < maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		metrics.OptimizationIterations = iteration + 1

		selected = s.selectBest(sctx, candidates)
		conflicts := s.detector.Detect(selected, dctx)
		metrics.ConflictsDetected += len(conflicts)
		if len(conflicts) == 0 {
			return selected, nil, nil
		}

		classIndex := make(map[string]*models.ScheduledClass, len(selected))
		for i := range selected {
			classIndex[selected[i].ID] = &selected[i]
		}
		rctx := ResolutionContext{
			Classes:          classIndex,
			Availability:     sctx.availability,
			ExistingBookings: sctx.existing,
			Constraints:      sctx.constraints,
			Now:              sctx.now,
		}

		changed := false
		unresolved = unresolved[:0]
		for _, conflict := range conflicts {
			resolutions := s.resolver.Resolve(conflict, rctx)
			conflict.Resolutions = resolutions

			applied := false
			for _, resolution := range resolutions {
				if !resolution.AutoApplicable(s.cfg.AutoApplyThreshold) {
					continue
				}
				if s.applyResolution(classIndex, resolution) {
					metrics.ConflictsResolved++
					applied, changed = true, true
				}
				break
			}
			if !applied {
				unresolved = append(unresolved, conflict)
			}
		}
		if !changed {
			break
		}
		candidates = rebuild(classIndex, selected)
	}

	// Bound exhausted: keep only conflict-free classes.
	selected = dropConflicting(selected, unresolved)
	return selected, unresolved, nil
}

// selectBest ranks candidates and greedily picks at most one class per
// student with no intra-batch teacher overlap.
func (s *OrchestratorService) selectBest(sctx *schedulingContext, candidates []models.ScheduledClass) []models.ScheduledClass {
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		// Join candidates carry the class's current roster first; score
		// against a student the request actually asked about.
		studentID := candidate.StudentIDs[0]
		for _, id := range candidate.StudentIDs {
			if _, ok := sctx.progress[id]; ok {
				studentID = id
				break
			}
		}
		scored = append(scored, s.scorer.Score(candidate, s.weights, ScoringContext{
			Progress:    sctx.progress[studentID],
			NextContent: sctx.nextContent[studentID],
			Catalog:     sctx.catalog,
		}))
	}
	s.scorer.Rank(scored)

	covered := make(map[string]bool)
	var batch []models.ScheduledClass
	for _, candidate := range scored {
		alreadyCovered := false
		for _, studentID := range candidate.Class.StudentIDs {
			if covered[studentID] {
				alreadyCovered = true
				break
			}
		}
		if alreadyCovered {
			continue
		}
		collides := false
		for i := range batch {
			if batch[i].TeacherID == candidate.Class.TeacherID && batch[i].Slot.Overlaps(candidate.Class.Slot) {
				collides = true
				break
			}
		}
		if collides {
			continue
		}
		class := candidate.Class
		class.ConfidenceScore = candidate.Total
		class.Alternatives = alternativesFor(scored, &class)
		batch = append(batch, class)
		for _, studentID := range class.StudentIDs {
			covered[studentID] = true
		}
	}
	return batch
}

// alternativesFor attaches up to three ranked fallbacks covering the same
// students.
func alternativesFor(scored []ScoredCandidate, chosen *models.ScheduledClass) []models.AlternativeOption {
	var alternatives []models.AlternativeOption
	for _, candidate := range scored {
		if candidate.Class.ID == chosen.ID || !candidate.Class.SharesStudent(chosen) {
			continue
		}
		alternatives = append(alternatives, models.AlternativeOption{
			Rank:      len(alternatives) + 1,
			TeacherID: candidate.Class.TeacherID,
			Slot:      candidate.Class.Slot,
			Score:     candidate.Total,
		})
		if len(alternatives) == 3 {
			break
		}
	}
	return alternatives
}

// applyResolution mutates the targeted class in place. Only reschedule and
// teacher reassignment change the candidate set mid-loop.
func (s *OrchestratorService) applyResolution(classes map[string]*models.ScheduledClass, resolution models.ConflictResolution) bool {
	class, ok := classes[resolution.TargetClassID]
	if !ok {
		return false
	}
	switch resolution.Type {
	case models.ResolutionReschedule:
		if resolution.ProposedSlot == nil {
			return false
		}
		class.Slot = *resolution.ProposedSlot
		return true
	case models.ResolutionReassignTeacher:
		if resolution.ProposedTeacherID == "" {
			return false
		}
		class.TeacherID = resolution.ProposedTeacherID
		return true
	case models.ResolutionWaitlist:
		max := class.Slot.Capacity.MaxStudents
		if max <= 0 || max > models.MaxGroupClassSize {
			max = models.MaxGroupClassSize
		}
		if len(class.StudentIDs) > max {
			class.StudentIDs = class.StudentIDs[:max]
			return true
		}
		return false
	case models.ResolutionAdjustContent:
		return false
	default:
		return false
	}
}

func rebuild(classes map[string]*models.ScheduledClass, selected []models.ScheduledClass) []models.ScheduledClass {
	out := make([]models.ScheduledClass, 0, len(selected))
	for i := range selected {
		if class, ok := classes[selected[i].ID]; ok {
			out = append(out, *class)
		}
	}
	return out
}

func dropConflicting(batch []models.ScheduledClass, conflicts []models.SchedulingConflict) []models.ScheduledClass {
	if len(conflicts) == 0 {
		return batch
	}
	conflicting := make(map[string]bool)
	for _, conflict := range conflicts {
		for _, id := range conflict.ClassIDs {
			conflicting[id] = true
		}
	}
	var clean []models.ScheduledClass
	for i := range batch {
		if !conflicting[batch[i].ID] {
			clean = append(clean, batch[i])
		}
	}
	return clean
}

// commitRecord remembers one committed booking so a cancellation arriving
// mid-batch can unwind it. prior is the roster before a join commit; nil
// marks a freshly created class.
type commitRecord struct {
	class models.ScheduledClass
	prior []string
}

// validateAndCommit re-reads bookings, runs a final detector pass and
// commits the surviving classes. New classes go through Create; joins into
// existing classes go through the versioned enrollment commit. A commit
// rejected by the optimistic check becomes a capacity conflict, never a
// silent overwrite.
func (s *OrchestratorService) validateAndCommit(ctx context.Context, sctx *schedulingContext, batch []models.ScheduledClass, unresolved, blocked []models.SchedulingConflict, metrics *models.SchedulingMetrics) *models.SchedulingResult {
	s.setStatus(sctx.request.ID, models.StatusValidating)
	phaseStart := time.Now()
	defer func() { s.metrics.ObservePhase(models.StatusValidating, time.Since(phaseStart)) }()

	if err := ctx.Err(); err != nil {
		return s.terminalError(sctx.request.ID, err, metrics)
	}

	// Fresh read defends against bookings committed since analyzing.
	horizon := s.bookingHorizon(sctx.constraints)
	existing, err := s.bookings.ListByDateRange(ctx, sctx.now, sctx.now.Add(horizon))
	if err != nil {
		return s.terminalError(sctx.request.ID, appErrors.Wrap(err, appErrors.ErrCollaborator, "re-reading bookings"), metrics)
	}

	finalConflicts := s.detector.Detect(batch, DetectionContext{
		Existing:     existing,
		Progress:     sctx.progress,
		Availability: sctx.availability,
		Catalog:      sctx.catalog,
		Now:          sctx.now,
	})
	metrics.ConflictsDetected += len(finalConflicts)
	committable := dropConflicting(batch, finalConflicts)
	demoted := len(batch) - len(committable)

	var committed []models.ScheduledClass
	var journal []commitRecord
	for i := range committable {
		if err := ctx.Err(); err != nil {
			// Cancellation mid-batch must not leave half the batch booked.
			s.compensate(journal)
			return s.terminalError(sctx.request.ID, err, metrics)
		}
		class := committable[i]
		record := commitRecord{}
		var commitErr error
		if class.Version > 0 {
			record.prior = priorRoster(class.StudentIDs, sctx.request.StudentIDs)
			commitErr = s.bookings.CommitEnrollment(ctx, class.ID, class.Version, class.StudentIDs)
			class.Version++
		} else {
			commitErr = s.bookings.Create(ctx, &class)
		}
		if commitErr != nil {
			if appErrors.Is(commitErr, appErrors.ErrConflict) || appErrors.Is(commitErr, appErrors.ErrCapacityExceeded) {
				s.metrics.ObserveCommitConflict()
				finalConflicts = append(finalConflicts, models.SchedulingConflict{
					ID:          uuid.NewString(),
					Type:        models.ConflictCapacityExceeded,
					Severity:    models.SeverityHigh,
					ClassIDs:    []string{class.ID},
					TeacherIDs:  []string{class.TeacherID},
					StudentIDs:  class.StudentIDs,
					Description: "booking lost a concurrent commit race: " + commitErr.Error(),
					DetectedAt:  time.Now().UTC(),
				})
				continue
			}
			return s.terminalError(sctx.request.ID, appErrors.Wrap(commitErr, appErrors.ErrCollaborator, "committing booking"), metrics)
		}
		record.class = class
		journal = append(journal, record)
		committed = append(committed, class)
	}

	if len(finalConflicts) > 0 {
		classIndex := make(map[string]*models.ScheduledClass, len(batch))
		for i := range batch {
			classIndex[batch[i].ID] = &batch[i]
		}
		rctx := ResolutionContext{
			Classes:          classIndex,
			Availability:     sctx.availability,
			ExistingBookings: existing,
			Constraints:      sctx.constraints,
			Now:              sctx.now,
		}
		for i := range finalConflicts {
			finalConflicts[i].Resolutions = s.resolver.Resolve(finalConflicts[i], rctx)
		}
	}

	unresolved = append(unresolved, finalConflicts...)
	unresolved = append(unresolved, residualBlocked(sctx, blocked, committed)...)
	recommendations := s.unscheduledRecommendations(sctx, committed)
	if demoted > 0 {
		s.logger.Info("classes demoted to recommendations after final validation",
			zap.String("request_id", sctx.request.ID),
			zap.Int("demoted", demoted))
	}

	now := time.Now().UTC()
	success := len(committed) > 0
	status := models.StatusCompleted
	if !success {
		status = models.StatusFailed
	}
	result := &models.SchedulingResult{
		RequestID:           sctx.request.ID,
		Success:             success,
		Status:              status,
		Classes:             committed,
		UnresolvedConflicts: unresolved,
		Recommendations:     recommendations,
		Metrics:             *metrics,
		CreatedAt:           sctx.request.SubmittedAt,
		CompletedAt:         now,
	}
	if !success && len(unresolved) == 0 && len(recommendations) == 0 {
		result.Error = appErrors.Clone(appErrors.ErrNoFeasibleCandidate, "")
	}
	return result
}

// compensate unwinds bookings committed before a cancellation stopped the
// batch. The request context is already dead, so the unwind runs on its own
// deadline. Join commits restore the roster the class had before; created
// classes are cancelled.
func (s *OrchestratorService) compensate(journal []commitRecord) {
	if len(journal) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(journal) - 1; i >= 0; i-- {
		record := journal[i]
		var err error
		if record.prior != nil {
			err = s.bookings.CommitEnrollment(ctx, record.class.ID, record.class.Version, record.prior)
		} else {
			from := record.class.Status
			if current, findErr := s.bookings.FindByID(ctx, record.class.ID); findErr == nil {
				from = current.Status
			}
			err = s.bookings.UpdateStatus(ctx, record.class.ID, from, models.ClassStatusCancelled)
		}
		if err != nil {
			s.logger.Error("failed to unwind booking after cancellation",
				zap.String("class_id", record.class.ID),
				zap.Error(err))
		}
	}
}

// priorRoster is the class roster minus the request's students.
func priorRoster(roster, requested []string) []string {
	inRequest := make(map[string]bool, len(requested))
	for _, id := range requested {
		inRequest[id] = true
	}
	prior := make([]string, 0, len(roster))
	for _, id := range roster {
		if !inRequest[id] {
			prior = append(prior, id)
		}
	}
	return prior
}

// residualBlocked keeps full-class conflicts only when a requested student
// named in them found no seat elsewhere.
func residualBlocked(sctx *schedulingContext, blocked []models.SchedulingConflict, committed []models.ScheduledClass) []models.SchedulingConflict {
	if len(blocked) == 0 {
		return nil
	}
	seated := make(map[string]bool)
	for i := range committed {
		for _, id := range committed[i].StudentIDs {
			seated[id] = true
		}
	}
	requested := make(map[string]bool, len(sctx.request.StudentIDs))
	for _, id := range sctx.request.StudentIDs {
		requested[id] = true
	}
	var kept []models.SchedulingConflict
	for _, conflict := range blocked {
		for _, id := range conflict.StudentIDs {
			if requested[id] && !seated[id] {
				kept = append(kept, conflict)
				break
			}
		}
	}
	return kept
}

// unscheduledRecommendations covers every requested student with no
// committed class. Nothing is dropped silently.
func (s *OrchestratorService) unscheduledRecommendations(sctx *schedulingContext, committed []models.ScheduledClass) []models.SchedulingRecommendation {
	scheduled := make(map[string]bool)
	for i := range committed {
		for _, studentID := range committed[i].StudentIDs {
			scheduled[studentID] = true
		}
	}

	var recommendations []models.SchedulingRecommendation
	for _, studentID := range sctx.request.StudentIDs {
		if scheduled[studentID] {
			continue
		}
		var contentIDs []string
		for _, content := range sctx.nextContent[studentID] {
			contentIDs = append(contentIDs, content.ID)
		}
		notBefore := sctx.now.Add(24 * time.Hour)
		recommendations = append(recommendations, models.SchedulingRecommendation{
			Type:       models.RecommendationRetryLater,
			StudentIDs: []string{studentID},
			ContentIDs: contentIDs,
			Confidence: 0.5,
			Benefits:   []string{"availability may open as other bookings settle"},
			Drawbacks:  []string{"delays the student's content progression"},
			Action: models.RecommendedAction{
				Operation: models.OperationAutoSchedule,
				NotBefore: &notBefore,
			},
		})
	}
	return recommendations
}
