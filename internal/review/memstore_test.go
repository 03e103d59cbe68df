package review

import (
	"context"
	"fmt"
	"sync"

	"gridworks/internal/model"
)

// memStore 是测试用的内存 Store/TxRunner：事务开始时做快照，
// fn 返回错误则整体回滚。互斥锁使事务串行，等价于行级锁。
type memStore struct {
	mu          sync.Mutex
	submissions map[int64]model.Submission
	projects    map[int64]model.Project
	milestones  map[int64]model.Milestone
	approvals   []model.Approval
	audits      []model.AuditLogEntry
	reviewers   []model.User
	events      []stagedEvent
	nextID      int64

	// failOn forces the named Store method to error, for rollback tests.
	failOn string
}

type stagedEvent struct {
	routingKey string
	payload    any
}

type memSnapshot struct {
	submissions map[int64]model.Submission
	projects    map[int64]model.Project
	milestones  map[int64]model.Milestone
	approvals   []model.Approval
	audits      []model.AuditLogEntry
	events      []stagedEvent
	nextID      int64
}

func newMemStore() *memStore {
	return &memStore{
		submissions: make(map[int64]model.Submission),
		projects:    make(map[int64]model.Project),
		milestones:  make(map[int64]model.Milestone),
	}
}

func (m *memStore) WithinTx(_ context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) snapshot() memSnapshot {
	subs := make(map[int64]model.Submission, len(m.submissions))
	for k, v := range m.submissions {
		subs[k] = v
	}
	projects := make(map[int64]model.Project, len(m.projects))
	for k, v := range m.projects {
		projects[k] = v
	}
	milestones := make(map[int64]model.Milestone, len(m.milestones))
	for k, v := range m.milestones {
		milestones[k] = v
	}
	return memSnapshot{
		submissions: subs,
		projects:    projects,
		milestones:  milestones,
		approvals:   append([]model.Approval(nil), m.approvals...),
		audits:      append([]model.AuditLogEntry(nil), m.audits...),
		events:      append([]stagedEvent(nil), m.events...),
		nextID:      m.nextID,
	}
}

func (m *memStore) restore(snap memSnapshot) {
	m.submissions = snap.submissions
	m.projects = snap.projects
	m.milestones = snap.milestones
	m.approvals = snap.approvals
	m.audits = snap.audits
	m.events = snap.events
	m.nextID = snap.nextID
}

func (m *memStore) fail(method string) error {
	if m.failOn == method {
		return fmt.Errorf("forced failure in %s", method)
	}
	return nil
}

func (m *memStore) GetSubmissionForUpdate(_ context.Context, id int64) (*model.Submission, error) {
	if err := m.fail("GetSubmissionForUpdate"); err != nil {
		return nil, err
	}
	s, ok := m.submissions[id]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

func (m *memStore) InsertSubmission(_ context.Context, sub *model.Submission) error {
	if err := m.fail("InsertSubmission"); err != nil {
		return err
	}
	m.nextID++
	sub.ID = m.nextID
	m.submissions[sub.ID] = *sub
	return nil
}

func (m *memStore) UpdateSubmissionReview(_ context.Context, sub *model.Submission) error {
	if err := m.fail("UpdateSubmissionReview"); err != nil {
		return err
	}
	if _, ok := m.submissions[sub.ID]; !ok {
		return fmt.Errorf("submission %d does not exist", sub.ID)
	}
	m.submissions[sub.ID] = *sub
	return nil
}

func (m *memStore) DeleteSubmission(_ context.Context, id int64) error {
	delete(m.submissions, id)
	return nil
}

func (m *memStore) GetProject(_ context.Context, id int64) (*model.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (m *memStore) UpdateProjectProgress(_ context.Context, projectID int64, progress int, confidence string, status model.ProjectStatus) error {
	if err := m.fail("UpdateProjectProgress"); err != nil {
		return err
	}
	p, ok := m.projects[projectID]
	if !ok {
		return fmt.Errorf("project %d does not exist", projectID)
	}
	p.Progress = progress
	p.ProgressConfidence = confidence
	p.Status = status
	m.projects[projectID] = p
	return nil
}

func (m *memStore) GetMilestone(_ context.Context, id int64) (*model.Milestone, error) {
	ms, ok := m.milestones[id]
	if !ok {
		return nil, nil
	}
	cp := ms
	return &cp, nil
}

func (m *memStore) ListMilestones(_ context.Context, projectID int64) ([]model.Milestone, error) {
	var out []model.Milestone
	for _, ms := range m.milestones {
		if ms.ProjectID == projectID {
			out = append(out, ms)
		}
	}
	return out, nil
}

func (m *memStore) CompleteMilestone(_ context.Context, ms *model.Milestone) error {
	if err := m.fail("CompleteMilestone"); err != nil {
		return err
	}
	m.milestones[ms.ID] = *ms
	return nil
}

func (m *memStore) ListSubmissionsByProject(_ context.Context, projectID int64) ([]model.Submission, error) {
	var out []model.Submission
	for _, s := range m.submissions {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ListApprovalsByProject(_ context.Context, projectID int64) ([]model.Approval, error) {
	var out []model.Approval
	for _, a := range m.approvals {
		if s, ok := m.submissions[a.SubmissionID]; ok && s.ProjectID == projectID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) InsertApproval(_ context.Context, a *model.Approval) error {
	if err := m.fail("InsertApproval"); err != nil {
		return err
	}
	m.nextID++
	a.ID = m.nextID
	m.approvals = append(m.approvals, *a)
	return nil
}

func (m *memStore) InsertAudit(_ context.Context, e *model.AuditLogEntry) error {
	if err := m.fail("InsertAudit"); err != nil {
		return err
	}
	m.nextID++
	e.ID = m.nextID
	m.audits = append(m.audits, *e)
	return nil
}

func (m *memStore) ListActiveReviewers(_ context.Context) ([]model.User, error) {
	return append([]model.User(nil), m.reviewers...), nil
}

func (m *memStore) EnqueueEvent(_ context.Context, routingKey string, _ *int64, payload any) error {
	if err := m.fail("EnqueueEvent"); err != nil {
		return err
	}
	m.events = append(m.events, stagedEvent{routingKey: routingKey, payload: payload})
	return nil
}

func (m *memStore) eventCount(routingKey string) int {
	n := 0
	for _, e := range m.events {
		if e.routingKey == routingKey {
			n++
		}
	}
	return n
}
