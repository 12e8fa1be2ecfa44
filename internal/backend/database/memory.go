package database

import (
	"context"
	"fmt"
	"sync"
)

// MemoryDatabase keeps records in process memory in insertion order.
type MemoryDatabase struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		records: make(map[string]*Record),
		order:   make([]string, 0),
	}
}

func (m *MemoryDatabase) CreateDatabase(ctx context.Context) error {
	return nil
}

func (m *MemoryDatabase) DoesDatabaseExist(ctx context.Context) bool {
	return true
}

func (m *MemoryDatabase) Close() error {
	return nil
}

func (m *MemoryDatabase) CreateRecord(ctx context.Context, record *Record) (*Record, error) {
	if record == nil || record.ID == "" {
		return nil, fmt.Errorf("record must have an id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[record.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, record.ID)
	}
	m.records[record.ID] = record.clone()
	m.order = append(m.order, record.ID)
	return record.clone(), nil
}

func (m *MemoryDatabase) GetRecordByID(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return record.clone(), nil
}

func (m *MemoryDatabase) GetAllRecords(ctx context.Context) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]*Record, 0, len(m.order))
	for _, id := range m.order {
		records = append(records, m.records[id].clone())
	}
	return records, nil
}
