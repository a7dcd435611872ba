package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// OpCounts reports how many calls of each kind a Memory store has served.
type OpCounts struct {
	Gets    int64
	Sets    int64
	Updates int64
	Queries int64
}

// Memory is an in-process Store. Documents are kept as JSON so values behave
// the same way they do in the JSONB backend.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte

	gets, sets, updates, queries atomic.Int64
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string][]byte)}
}

// Counts returns the number of operations served so far.
func (m *Memory) Counts() OpCounts {
	return OpCounts{
		Gets:    m.gets.Load(),
		Sets:    m.sets.Load(),
		Updates: m.updates.Load(),
		Queries: m.queries.Load(),
	}
}

func (m *Memory) Get(ctx context.Context, collection, key string, dst any) error {
	m.gets.Add(1)
	if err := ctx.Err(); err != nil {
		return Unavailable("get", err)
	}
	m.mu.RLock()
	raw, ok := m.docs[collection][key]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dst)
}

func (m *Memory) Set(ctx context.Context, collection, key string, doc any) error {
	m.sets.Add(1)
	if err := ctx.Err(); err != nil {
		return Unavailable("set", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.docs[collection]
	if !ok {
		coll = make(map[string][]byte)
		m.docs[collection] = coll
	}
	coll[key] = raw
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	m.updates.Add(1)
	if err := ctx.Err(); err != nil {
		return Unavailable("update", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[collection][key]
	if !ok {
		return ErrNotFound
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	for field, value := range fields {
		enc, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode field %s: %w", field, err)
		}
		body[field] = enc
	}
	merged, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	m.docs[collection][key] = merged
	return nil
}

func (m *Memory) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	m.queries.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, Unavailable("query", err)
	}
	want, err := encodeFilters(q.Filters)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	coll := m.docs[collection]
	keys := make([]string, 0, len(coll))
	for k := range coll {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if q.Descending {
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	}

	var out []Snapshot
	for _, k := range keys {
		if q.StartAfter != "" {
			if !q.Descending && k <= q.StartAfter {
				continue
			}
			if q.Descending && k >= q.StartAfter {
				continue
			}
		}
		ok, err := matches(coll[k], want)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, jsonSnapshot{key: k, raw: coll[k]})
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Close(context.Context) error { return nil }

func encodeFilters(filters []Filter) (map[string][]byte, error) {
	want := make(map[string][]byte, len(filters))
	for _, f := range filters {
		enc, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
		}
		want[f.Field] = enc
	}
	return want, nil
}

func matches(raw []byte, want map[string][]byte) (bool, error) {
	if len(want) == 0 {
		return true, nil
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	for field, value := range want {
		got, ok := body[field]
		if !ok || !bytes.Equal(compact(got), value) {
			return false, nil
		}
	}
	return true, nil
}

func compact(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
