package approval

import (
	"context"
	"slices"
	"sort"
	"sync"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/id"
	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/posting"
	"storeflow/internal/domain/scope"
	"storeflow/internal/domain/workflow"
)

// memState is everything a transaction may roll back.
type memState struct {
	records map[id.ID]*movement.Record
	journal map[id.ID][]*workflow.Transition
	snaps   map[posting.Key]*movement.Record
	events  []Event
}

func (s memState) clone() memState {
	out := memState{
		records: make(map[id.ID]*movement.Record, len(s.records)),
		journal: make(map[id.ID][]*workflow.Transition, len(s.journal)),
		snaps:   make(map[posting.Key]*movement.Record, len(s.snaps)),
		events:  slices.Clone(s.events),
	}
	for k, v := range s.snaps {
		out.snaps[k] = v
	}
	for k, v := range s.records {
		out.records[k] = cloneRecord(v)
	}
	for k, v := range s.journal {
		out.journal[k] = slices.Clone(v)
	}
	return out
}

func cloneRecord(r *movement.Record) *movement.Record {
	c := *r
	c.Lines = slices.Clone(r.Lines)
	return &c
}

// memStore is an in-memory repository, journal and outbox sharing one transactional state.
type memStore struct {
	mu    sync.Mutex
	state memState

	listCalls int
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		records: make(map[id.ID]*movement.Record),
		journal: make(map[id.ID][]*workflow.Transition),
		snaps:   make(map[posting.Key]*movement.Record),
	}}
}

// RunInTransaction restores the state snapshot when fn fails.
func (m *memStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) GetByID(_ context.Context, recordID id.ID) (*movement.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.records[recordID]
	if !ok {
		return nil, apperror.NewNotFound("movement", recordID.String())
	}
	return cloneRecord(r), nil
}

func (m *memStore) GetForUpdate(ctx context.Context, recordID id.ID) (*movement.Record, error) {
	return m.GetByID(ctx, recordID)
}

func (m *memStore) Create(_ context.Context, rec *movement.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (m *memStore) Update(_ context.Context, rec *movement.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.state.records[rec.ID]
	if !ok || stored.Version != rec.Version {
		return apperror.NewConcurrentModification("movement", rec.ID.String())
	}
	rec.Version++
	m.state.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (m *memStore) SaveLines(_ context.Context, recordID id.ID, lines []movement.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.records[recordID].Lines = slices.Clone(lines)
	return nil
}

func (m *memStore) Delete(_ context.Context, recordID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.records, recordID)
	return nil
}

func (m *memStore) visible(rule scope.Rule) []*movement.Record {
	var out []*movement.Record
	for _, r := range m.state.records {
		if rule.Matches(r) {
			out = append(out, cloneRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReferenceNumber < out[j].ReferenceNumber })
	return out
}

func (m *memStore) matching(filter movement.ListFilter, rule scope.Rule) []*movement.Record {
	var matched []*movement.Record
	for _, r := range m.visible(rule) {
		if filter.Matches(r) {
			matched = append(matched, r)
		}
	}
	return matched
}

func (m *memStore) List(_ context.Context, filter movement.ListFilter, rule scope.Rule) (movement.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++

	matched := m.matching(filter, rule)

	res := movement.ListResult{TotalCount: int64(len(matched)), Limit: filter.Limit, Offset: filter.Offset, Records: []*movement.Record{}}
	end := len(matched)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	if filter.Offset < end {
		res.Records = matched[filter.Offset:end]
	}
	return res, nil
}

func (m *memStore) Summaries(_ context.Context, filter movement.ListFilter, rule scope.Rule) ([]*movement.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matching(filter, rule), nil
}

func (m *memStore) Append(_ context.Context, rec *movement.Record, t *workflow.Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.journal[rec.ID] = append(m.state.journal[rec.ID], t)
	m.state.snaps[t.PostingKey(rec.ID)] = cloneRecord(rec)
	return nil
}

func (m *memStore) Snapshot(_ context.Context, recordID id.ID, seq int) (*movement.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.snaps[posting.Key{RecordID: recordID, Seq: seq}]
	if !ok {
		return nil, nil
	}
	return cloneRecord(r), nil
}

func (m *memStore) History(_ context.Context, recordID id.ID) ([]*workflow.Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.journal[recordID]), nil
}

func (m *memStore) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.events = append(m.state.events, event)
	return nil
}

func (m *memStore) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.state.events))
	for _, e := range m.state.events {
		out = append(out, e.EventType)
	}
	return out
}

// fakeLedger is the external accounting collaborator; it does not take part in rollbacks.
type fakeLedger struct {
	mu      sync.Mutex
	applied map[posting.Key]bool
	entries []posting.Entry
	calls   int

	// failBefore fails without posting; failAfter posts and then reports an error.
	failBefore error
	failAfter  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{applied: make(map[posting.Key]bool)}
}

func (l *fakeLedger) ApplyMovement(_ context.Context, key posting.Key, entries []posting.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++

	if l.failBefore != nil {
		return l.failBefore
	}
	if !l.applied[key] {
		l.applied[key] = true
		l.entries = append(l.entries, entries...)
	}
	return l.failAfter
}

type fakeRefs struct {
	unknown map[id.ID]bool
}

func (f *fakeRefs) ValidateStores(_ context.Context, ids []id.ID) error {
	return f.check("store", ids)
}

func (f *fakeRefs) ValidateProducts(_ context.Context, ids []id.ID) error {
	return f.check("product", ids)
}

func (f *fakeRefs) check(kind string, ids []id.ID) error {
	for _, v := range ids {
		if f.unknown[v] {
			return apperror.NewFieldValidation(kind, "unknown "+kind).WithDetail("id", v.String())
		}
	}
	return nil
}
