package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/krauseinafrica/storescore-sub001/pkg/apperrors"
	"github.com/krauseinafrica/storescore-sub001/pkg/models"
	"github.com/krauseinafrica/storescore-sub001/pkg/repositories"
)

// Mock implementations for testing. They emulate the repository contracts
// in memory: patch semantics, transactional event appends, write-once
// analysis merges.

type mockActionItemRepository struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*models.ActionItem
	events   map[uuid.UUID][]*models.ActionItemEvent
	err      error // When set, every method fails with it
	batchErr error // When set, CreateBatch fails with it
	detached []uuid.UUID
}

func newMockActionItemRepository() *mockActionItemRepository {
	return &mockActionItemRepository{
		items:  make(map[uuid.UUID]*models.ActionItem),
		events: make(map[uuid.UUID][]*models.ActionItemEvent),
	}
}

var _ repositories.ActionItemRepository = (*mockActionItemRepository)(nil)

func (m *mockActionItemRepository) Create(ctx context.Context, item *models.ActionItem, events ...*models.ActionItemEvent) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	m.items[item.ID] = item
	for _, e := range events {
		e.ActionItemID = item.ID
		m.events[item.ID] = append(m.events[item.ID], e)
	}
	return nil
}

func (m *mockActionItemRepository) CreateBatch(ctx context.Context, items []*models.ActionItem) error {
	if m.err != nil {
		return m.err
	}
	if m.batchErr != nil {
		return m.batchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		m.items[item.ID] = item
		m.events[item.ID] = append(m.events[item.ID],
			models.NewEvent(item.ID, models.EventCreated, item.CreatedBy).WithNotes(item.Description))
	}
	return nil
}

func (m *mockActionItemRepository) Get(ctx context.Context, orgID, itemID uuid.UUID) (*models.ActionItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok || item.OrgID != orgID {
		return nil, apperrors.ErrNotFound
	}
	return item, nil
}

func (m *mockActionItemRepository) ListByStore(ctx context.Context, orgID, storeID uuid.UUID, status *models.ActionItemStatus) ([]*models.ActionItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ActionItem
	for _, item := range m.items {
		if item.OrgID != orgID || item.StoreID != storeID {
			continue
		}
		if status != nil && item.Status != *status {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (m *mockActionItemRepository) Update(ctx context.Context, orgID, itemID uuid.UUID, patch repositories.ActionItemPatch, events ...*models.ActionItemEvent) error {
	return m.UpdateWithResponse(ctx, orgID, itemID, patch, nil, events...)
}

func (m *mockActionItemRepository) UpdateWithResponse(ctx context.Context, orgID, itemID uuid.UUID, patch repositories.ActionItemPatch, response *models.Response, events ...*models.ActionItemEvent) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok || item.OrgID != orgID {
		return apperrors.ErrNotFound
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.Priority != nil {
		item.Priority = *patch.Priority
	}
	if patch.AssignedTo != nil {
		item.AssignedTo = patch.AssignedTo
	}
	if patch.DueDate != nil {
		item.DueDate = patch.DueDate
	}
	if patch.ClearResolution {
		item.ResolvedBy = nil
		item.ResolvedAt = nil
	} else {
		if patch.ResolvedBy != nil {
			item.ResolvedBy = patch.ResolvedBy
		}
		if patch.ResolvedAt != nil {
			item.ResolvedAt = patch.ResolvedAt
		}
	}
	if patch.ReviewedBy != nil {
		item.ReviewedBy = patch.ReviewedBy
	}
	if patch.ReviewedAt != nil {
		item.ReviewedAt = patch.ReviewedAt
	}
	if patch.ReviewNotes != nil {
		item.ReviewNotes = patch.ReviewNotes
	}
	if response != nil {
		response.ActionItemID = itemID
		item.Responses = append(item.Responses, response)
	}
	for _, e := range events {
		e.ActionItemID = itemID
		m.events[itemID] = append(m.events[itemID], e)
	}
	return nil
}

func (m *mockActionItemRepository) AddResponse(ctx context.Context, response *models.Response, events ...*models.ActionItemEvent) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[response.ActionItemID]
	if !ok {
		return apperrors.ErrNotFound
	}
	item.Responses = append(item.Responses, response)
	for _, e := range events {
		m.events[response.ActionItemID] = append(m.events[response.ActionItemID], e)
	}
	return nil
}

func (m *mockActionItemRepository) DetachAssessment(ctx context.Context, orgID, assessmentID uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.AssessmentID != nil && *item.AssessmentID == assessmentID {
			item.AssessmentID = nil
		}
	}
	m.detached = append(m.detached, assessmentID)
	return nil
}

func (m *mockActionItemRepository) eventsFor(itemID uuid.UUID) []*models.ActionItemEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.ActionItemEvent(nil), m.events[itemID]...)
}

type mockEventRepository struct {
	mu     sync.Mutex
	events map[uuid.UUID][]*models.ActionItemEvent
	err    error
}

func newMockEventRepository() *mockEventRepository {
	return &mockEventRepository{events: make(map[uuid.UUID][]*models.ActionItemEvent)}
}

var _ repositories.EventRepository = (*mockEventRepository)(nil)

func (m *mockEventRepository) Append(ctx context.Context, event *models.ActionItemEvent) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ActionItemID] = append(m.events[event.ActionItemID], event)
	return nil
}

func (m *mockEventRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]*models.ActionItemEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.ActionItemEvent(nil), m.events[itemID]...), nil
}

type mockAssessmentRepository struct {
	mu          sync.Mutex
	assessments map[uuid.UUID]*models.SelfAssessment
	err         error

	// getFn, when set, intercepts Get; used by poller tests to script a
	// sequence of fetch outcomes.
	getFn    func(call int) (*models.SelfAssessment, error)
	getCalls int
}

func newMockAssessmentRepository() *mockAssessmentRepository {
	return &mockAssessmentRepository{assessments: make(map[uuid.UUID]*models.SelfAssessment)}
}

var _ repositories.AssessmentRepository = (*mockAssessmentRepository)(nil)

func (m *mockAssessmentRepository) Create(ctx context.Context, assessment *models.SelfAssessment) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if assessment.ID == uuid.Nil {
		assessment.ID = uuid.New()
	}
	m.assessments[assessment.ID] = assessment
	return nil
}

func (m *mockAssessmentRepository) Get(ctx context.Context, orgID, assessmentID uuid.UUID) (*models.SelfAssessment, error) {
	m.mu.Lock()
	m.getCalls++
	call := m.getCalls
	fn := m.getFn
	m.mu.Unlock()
	if fn != nil {
		return fn(call)
	}
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assessments[assessmentID]
	if !ok || a.OrgID != orgID {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (m *mockAssessmentRepository) ListByStatus(ctx context.Context, orgID uuid.UUID, status models.SelfAssessmentStatus) ([]*models.SelfAssessment, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SelfAssessment
	for _, a := range m.assessments {
		if a.OrgID == orgID && a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAssessmentRepository) Update(ctx context.Context, orgID, assessmentID uuid.UUID, patch repositories.AssessmentPatch) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assessments[assessmentID]
	if !ok || a.OrgID != orgID {
		return apperrors.ErrNotFound
	}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	if patch.SubmittedAt != nil {
		a.SubmittedAt = patch.SubmittedAt
	}
	if patch.ReviewedBy != nil {
		a.ReviewedBy = patch.ReviewedBy
	}
	if patch.ReviewedAt != nil {
		a.ReviewedAt = patch.ReviewedAt
	}
	if patch.ReviewerNotes != nil {
		a.ReviewerNotes = patch.ReviewerNotes
	}
	return nil
}

func (m *mockAssessmentRepository) UpsertSubmission(ctx context.Context, submission *models.AssessmentSubmission) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assessments[submission.AssessmentID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if submission.ID == uuid.Nil {
		submission.ID = uuid.New()
	}
	for i, existing := range a.Submissions {
		if existing.PromptID == submission.PromptID {
			// Replacement keeps the row identity and AI fields, discards
			// caption/self-rating in favor of the new values.
			submission.ID = existing.ID
			submission.AIRating = existing.AIRating
			submission.AIAnalysis = existing.AIAnalysis
			a.Submissions[i] = submission
			return nil
		}
	}
	a.Submissions = append(a.Submissions, submission)
	return nil
}

func (m *mockAssessmentRepository) MergeAnalysis(ctx context.Context, submissionID uuid.UUID, rating *models.Rating, analysis *models.AIAnalysis) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assessments {
		for _, s := range a.Submissions {
			if s.ID != submissionID {
				continue
			}
			if s.AIRating != nil || s.AIAnalysis != nil {
				return 0, nil // Frozen
			}
			s.AIRating = rating
			s.AIAnalysis = analysis
			return 1, nil
		}
	}
	return 0, apperrors.ErrNotFound
}

func (m *mockAssessmentRepository) ApplyReview(ctx context.Context, submissionID uuid.UUID, patch repositories.SubmissionReviewPatch) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assessments {
		for _, s := range a.Submissions {
			if s.ID != submissionID {
				continue
			}
			s.ReviewedBy = &patch.ReviewedBy
			if patch.Rating != nil {
				s.ReviewerRating = patch.Rating
			}
			if patch.Notes != nil {
				s.ReviewerNotes = patch.Notes
			}
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockAssessmentRepository) Delete(ctx context.Context, orgID, assessmentID uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assessments[assessmentID]
	if !ok || a.OrgID != orgID {
		return apperrors.ErrNotFound
	}
	delete(m.assessments, assessmentID)
	return nil
}
