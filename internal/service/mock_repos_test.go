package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/model"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/repository"
	pkgerrors "github.com/24Tech-io/nursepor-stable-sub005/pkg/errors"
)

// ── Mock CourseRepository ──

type mockCourseRepo struct {
	mu      sync.Mutex
	courses map[string]*model.Course
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{courses: make(map[string]*model.Course)}
}

func (m *mockCourseRepo) Create(_ context.Context, course *model.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if course.CourseID == "" {
		course.CourseID = "course-" + course.Slug
	}
	m.courses[course.CourseID] = course
	return nil
}

func (m *mockCourseRepo) GetByID(_ context.Context, id string) (*model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCourseRepo) ListPublished(_ context.Context) ([]model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Course
	for _, c := range m.courses {
		if c.Status == model.CourseStatusPublished {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CourseID < result[j].CourseID })
	return result, nil
}

// ── 账本共享内存态 ──
//
// 三个账本 Mock 与事务 Mock 共享同一把互斥锁，
// 保证事务方法的多表写入在并发测试下不可分割。

type mockLedgerStore struct {
	mu       sync.Mutex
	records  map[string]*model.EnrollmentRecord // pairKey → 行
	facts    map[string]*model.EnrollmentFact   // pairKey → 行
	requests map[string]*model.AccessRequest    // requestID → 行
	seq      int
}

func newMockLedgerStore() *mockLedgerStore {
	return &mockLedgerStore{
		records:  make(map[string]*model.EnrollmentRecord),
		facts:    make(map[string]*model.EnrollmentFact),
		requests: make(map[string]*model.AccessRequest),
	}
}

func (s *mockLedgerStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%03d", prefix, s.seq)
}

// deletePairRequestsLocked 调用方必须已持有 s.mu
func (s *mockLedgerStore) deletePairRequestsLocked(studentID, courseID string) int64 {
	var n int64
	for id, req := range s.requests {
		if req.StudentID == studentID && req.CourseID == courseID {
			delete(s.requests, id)
			n++
		}
	}
	return n
}

// ── Mock EnrollmentRecordRepository ──

type mockEnrollmentRepo struct {
	store *mockLedgerStore
}

func (m *mockEnrollmentRepo) GetByPair(_ context.Context, studentID, courseID string) (*model.EnrollmentRecord, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if rec, ok := m.store.records[pairKey(studentID, courseID)]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEnrollmentRepo) ListActiveByStudent(_ context.Context, studentID string) ([]model.EnrollmentRecord, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var result []model.EnrollmentRecord
	for _, rec := range m.store.records {
		if rec.StudentID == studentID && rec.Status == model.EnrollmentStatusActive {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CourseID < result[j].CourseID })
	return result, nil
}

func (m *mockEnrollmentRepo) ListAllActive(_ context.Context) ([]model.EnrollmentRecord, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var result []model.EnrollmentRecord
	for _, rec := range m.store.records {
		if rec.Status == model.EnrollmentStatusActive {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StudentID != result[j].StudentID {
			return result[i].StudentID < result[j].StudentID
		}
		return result[i].CourseID < result[j].CourseID
	})
	return result, nil
}

// ── Mock EnrollmentFactRepository ──

type mockFactRepo struct {
	store *mockLedgerStore
}

func (m *mockFactRepo) GetByPair(_ context.Context, studentID, courseID string) (*model.EnrollmentFact, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if fact, ok := m.store.facts[pairKey(studentID, courseID)]; ok {
		cp := *fact
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockFactRepo) ListByStudent(_ context.Context, studentID string) ([]model.EnrollmentFact, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var result []model.EnrollmentFact
	for _, fact := range m.store.facts {
		if fact.StudentID == studentID {
			result = append(result, *fact)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CourseID < result[j].CourseID })
	return result, nil
}

func (m *mockFactRepo) ListAll(_ context.Context) ([]model.EnrollmentFact, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var result []model.EnrollmentFact
	for _, fact := range m.store.facts {
		result = append(result, *fact)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StudentID != result[j].StudentID {
			return result[i].StudentID < result[j].StudentID
		}
		return result[i].CourseID < result[j].CourseID
	})
	return result, nil
}

func (m *mockFactRepo) DeleteByPair(_ context.Context, studentID, courseID string) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	key := pairKey(studentID, courseID)
	if _, ok := m.store.facts[key]; !ok {
		return false, nil
	}
	delete(m.store.facts, key)
	return true, nil
}

// ── Mock AccessRequestRepository ──

type mockRequestRepo struct {
	store *mockLedgerStore
}

func (m *mockRequestRepo) Create(_ context.Context, req *model.AccessRequest) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if req.RequestID == "" {
		req.RequestID = m.store.nextID("req")
	}
	m.store.requests[req.RequestID] = req
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id string) (*model.AccessRequest, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if req, ok := m.store.requests[id]; ok {
		cp := *req
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRequestRepo) GetPendingByPair(_ context.Context, studentID, courseID string) (*model.AccessRequest, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var earliest *model.AccessRequest
	for _, req := range m.store.requests {
		if req.StudentID != studentID || req.CourseID != courseID || req.Status != model.RequestStatusPending {
			continue
		}
		if earliest == nil || req.RequestedAt.Before(earliest.RequestedAt) {
			earliest = req
		}
	}
	if earliest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *earliest
	return &cp, nil
}

func (m *mockRequestRepo) ListPendingByStudent(_ context.Context, studentID string) ([]model.AccessRequest, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var result []model.AccessRequest
	for _, req := range m.store.requests {
		if req.StudentID == studentID && req.Status == model.RequestStatusPending {
			result = append(result, *req)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CourseID < result[j].CourseID })
	return result, nil
}

func (m *mockRequestRepo) ListAll(_ context.Context) ([]model.AccessRequest, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var result []model.AccessRequest
	for _, req := range m.store.requests {
		result = append(result, *req)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StudentID != result[j].StudentID {
			return result[i].StudentID < result[j].StudentID
		}
		if result[i].CourseID != result[j].CourseID {
			return result[i].CourseID < result[j].CourseID
		}
		return result[i].RequestedAt.Before(result[j].RequestedAt)
	})
	return result, nil
}

func (m *mockRequestRepo) Delete(_ context.Context, id string) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.requests[id]; !ok {
		return false, nil
	}
	delete(m.store.requests, id)
	return true, nil
}

func (m *mockRequestRepo) DeleteByPair(_ context.Context, studentID, courseID string) (int64, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return m.store.deletePairRequestsLocked(studentID, courseID), nil
}

// ── Mock EnrollmentTxRepository ──
//
// 与真实实现一致的多表原子语义：持锁期间完成全部写入。

type mockTxRepo struct {
	store *mockLedgerStore
}

func (m *mockTxRepo) Enroll(_ context.Context, rec *model.EnrollmentRecord) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	key := pairKey(rec.StudentID, rec.CourseID)
	created := false
	if existing, ok := m.store.records[key]; ok {
		if existing.Status == model.EnrollmentStatusActive {
			rec.EnrollmentID = existing.EnrollmentID
			return false, nil
		}
		existing.Status = model.EnrollmentStatusActive
		existing.ProgressPercent = rec.ProgressPercent
		existing.EnrolledAt = rec.EnrolledAt
		existing.Source = rec.Source
		existing.Version++
		rec.EnrollmentID = existing.EnrollmentID
		created = true
	} else {
		if rec.EnrollmentID == "" {
			rec.EnrollmentID = m.store.nextID("enr")
		}
		if rec.Version == 0 {
			rec.Version = 1
		}
		cp := *rec
		m.store.records[key] = &cp
		created = true
	}

	m.store.deletePairRequestsLocked(rec.StudentID, rec.CourseID)
	return created, nil
}

func (m *mockTxRepo) Approve(_ context.Context, requestID, _ string, now time.Time) (*repository.ApproveOutcome, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	req, ok := m.store.requests[requestID]
	if !ok || req.Status != model.RequestStatusPending {
		return nil, pkgerrors.ErrRequestNotPending
	}

	outcome := &repository.ApproveOutcome{StudentID: req.StudentID, CourseID: req.CourseID}
	key := pairKey(req.StudentID, req.CourseID)
	if existing, ok := m.store.records[key]; ok {
		if existing.Status != model.EnrollmentStatusActive {
			existing.Status = model.EnrollmentStatusActive
			existing.ProgressPercent = 0
			existing.EnrolledAt = now
			existing.Source = "request"
			existing.Version++
			outcome.EnrollmentCreated = true
		}
	} else {
		m.store.records[key] = &model.EnrollmentRecord{
			EnrollmentID:   m.store.nextID("enr"),
			StudentID:      req.StudentID,
			CourseID:       req.CourseID,
			Status:         model.EnrollmentStatusActive,
			EnrolledAt:     now,
			Source:         "request",
			VersionedModel: model.VersionedModel{Version: 1},
		}
		outcome.EnrollmentCreated = true
	}

	m.store.deletePairRequestsLocked(req.StudentID, req.CourseID)
	return outcome, nil
}

func (m *mockTxRepo) RemoveEnrollment(_ context.Context, studentID, courseID, _ string) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	key := pairKey(studentID, courseID)
	deleted := false
	if rec, ok := m.store.records[key]; ok && rec.Status == model.EnrollmentStatusActive {
		rec.Status = model.EnrollmentStatusInactive
		rec.Version++
		deleted = true
	}
	if _, ok := m.store.facts[key]; ok {
		delete(m.store.facts, key)
		deleted = true
	}
	if m.store.deletePairRequestsLocked(studentID, courseID) > 0 {
		deleted = true
	}
	return deleted, nil
}

func (m *mockTxRepo) UpdateProgress(_ context.Context, studentID, courseID string, percent int, now time.Time) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	key := pairKey(studentID, courseID)
	rec, ok := m.store.records[key]
	if !ok || rec.Status != model.EnrollmentStatusActive {
		return gorm.ErrRecordNotFound
	}
	if percent > rec.ProgressPercent {
		rec.ProgressPercent = percent
	}

	if fact, ok := m.store.facts[key]; ok {
		if percent > fact.ProgressPercent {
			fact.ProgressPercent = percent
		}
		fact.LastAccessedAt = now
		return nil
	}
	m.store.facts[key] = &model.EnrollmentFact{
		FactID:          m.store.nextID("fact"),
		StudentID:       studentID,
		CourseID:        courseID,
		ProgressPercent: percent,
		LastAccessedAt:  now,
	}
	return nil
}

func (m *mockTxRepo) SyncLegacyProgress(_ context.Context, studentID, courseID string, percent int, now time.Time) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	if fact, ok := m.store.facts[pairKey(studentID, courseID)]; ok {
		fact.ProgressPercent = percent
		fact.UpdatedAt = now
	}
	return nil
}
