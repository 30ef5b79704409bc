package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	jobs    map[string]*SyncJob
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobs: make(map[string]*SyncJob)}
}

func (m *memoryStore) LoadJobs(_ context.Context) ([]*SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]*SyncJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		ret = append(ret, cloneJob(j))
	}
	return ret, nil
}

func (m *memoryStore) UpsertJob(_ context.Context, job *SyncJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *memoryStore) DeleteJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

func (m *memoryStore) DeleteJobData(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, jobID)
	return nil
}

func (m *memoryStore) get(id string) (*SyncJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return cloneJob(j), ok
}

func TestQueue_RecoversPendingAndRunningJobsFromStore(t *testing.T) {
	store := newMemoryStore()
	now := time.Now()
	store.jobs["job-1"] = &SyncJob{
		ID:        "job-1",
		Source:    SourceCron,
		DedupeKey: "sync|content",
		Status:    StatusPending,
		Payload:   Payload{Kind: "content"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	store.jobs["job-2"] = &SyncJob{
		ID:        "job-2",
		Source:    SourceCron,
		DedupeKey: "sync|books",
		Status:    StatusRunning,
		Payload:   Payload{Kind: "books"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	q := NewQueue(1, store)

	byID := map[string]*SyncJob{}
	for _, j := range q.List() {
		byID[j.ID] = j
	}
	require.Len(t, byID, 2)
	assert.Equal(t, StatusPending, byID["job-2"].Status)

	// the recovered active job still holds its dedupe key
	dup, created := q.Enqueue(EnqueueRequest{Source: SourceManual, DedupeKey: "sync|books"})
	assert.False(t, created)
	assert.Equal(t, "job-2", dup.ID)

	q.Start(okExecutor)
	defer q.Stop()

	for _, id := range []string{"job-1", "job-2"} {
		require.Eventually(t, func() bool {
			got, ok := q.Get(id)
			return ok && got.Status == StatusSuccess
		}, time.Second, 10*time.Millisecond)
	}

	require.Eventually(t, func() bool {
		got, ok := store.get("job-2")
		return ok && got.Status == StatusSuccess && got.Summary != nil
	}, time.Second, 10*time.Millisecond)

	next, created := q.Enqueue(EnqueueRequest{Source: SourceManual, DedupeKey: "other"})
	require.True(t, created)
	assert.Equal(t, "job-3", next.ID)
}

func TestQueue_PrunesOldTerminalJobs(t *testing.T) {
	store := newMemoryStore()
	q := NewQueue(1, store)
	q.maxJobs = 2
	q.Start(okExecutor)
	defer q.Stop()

	for i := range 3 {
		job, _ := q.Enqueue(EnqueueRequest{Source: SourceManual, DedupeKey: fmt.Sprintf("k%d", i)})
		require.Eventually(t, func() bool {
			got, ok := q.Get(job.ID)
			return ok && got.Status == StatusSuccess
		}, time.Second, 10*time.Millisecond)
	}

	require.Len(t, q.List(), 2)
	_, ok := q.Get("job-1")
	assert.False(t, ok)

	require.Eventually(t, func() bool {
		_, stillStored := store.get("job-1")
		return !stillStored
	}, time.Second, 10*time.Millisecond)
	store.mu.Lock()
	assert.Contains(t, store.deleted, "job-1")
	store.mu.Unlock()
}
