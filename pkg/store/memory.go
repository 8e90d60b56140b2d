package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mesplatform/schedopt/pkg/models"
	"github.com/mesplatform/schedopt/pkg/scheduler"
)

type memoryMachine struct {
	machine models.Machine
	status  string
}

// MemoryStore is an in-memory implementation of PlanStore
type MemoryStore struct {
	jobs     map[string]models.Job
	status   map[string]string
	machines map[string]*memoryMachine
	order    []string // machine insertion order, for stable capacity ties
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:     make(map[string]models.Job),
		status:   make(map[string]string),
		machines: make(map[string]*memoryMachine),
	}
}

func (s *MemoryStore) GetJobs(ctx context.Context, ids []string) ([]models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	jobs := make([]models.Job, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if job, ok := s.jobs[id]; ok {
			jobs = append(jobs, job)
		}
	}
	return scheduler.SortJobs(jobs), nil
}

func (s *MemoryStore) PendingJobIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		if s.status[id] == PlanStatusPending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ListMachines(ctx context.Context) ([]models.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	machines := make([]models.Machine, 0, len(s.order))
	for _, id := range s.order {
		m := s.machines[id]
		machine := m.machine
		machine.Available = m.status != MachineStatusDown
		machines = append(machines, machine)
	}
	sort.SliceStable(machines, func(i, j int) bool {
		return machines[i].CapacityPerPeriod > machines[j].CapacityPerPeriod
	})
	return machines, nil
}

// UpsertJob stores job as a pending plan
func (s *MemoryStore) UpsertJob(ctx context.Context, job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.Priority = models.ParsePriority(string(job.Priority))
	s.jobs[job.ID] = job
	s.status[job.ID] = PlanStatusPending
	return nil
}

func (s *MemoryStore) UpsertMachine(ctx context.Context, machine models.Machine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.machines[machine.ID]; !ok {
		s.order = append(s.order, machine.ID)
	}
	s.machines[machine.ID] = &memoryMachine{machine: machine, status: machineStatus(machine)}
	return nil
}

func (s *MemoryStore) SetMachineStatus(ctx context.Context, id, status string) error {
	if !validStatus(status) {
		return fmt.Errorf("invalid machine status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.machines[id]
	if !ok {
		return ErrMachineNotFound
	}
	m.status = status
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) HealthCheck(ctx context.Context) error { return nil }
