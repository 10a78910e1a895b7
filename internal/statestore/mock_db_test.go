package statestore

import (
	"io"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"
)

// mockDB is an in-memory DB used to inject engine failures.
type mockDB struct {
	mu   sync.Mutex
	data map[string][]byte

	// Error injection
	getErr     error
	newIterErr error
	iterErr    error // returned by Iterator.Error()
	commitErr  error
	closeErr   error
	setErr     error
	failOnSet  int // 1-based Set call within a batch that fails with setErr; 0 fails every Set
	deleteErr  error

	commits int
	closed  bool
}

func newMockDB() *mockDB {
	return &mockDB{data: make(map[string][]byte)}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (m *mockDB) Get(key []byte) ([]byte, io.Closer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, nil, m.getErr
	}
	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil, pebble.ErrNotFound
	}
	return append([]byte(nil), v...), nopCloser{}, nil
}

func (m *mockDB) NewIter(o *pebble.IterOptions) (Iterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.newIterErr != nil {
		return nil, m.newIterErr
	}

	it := &mockIterator{pos: -1, iterErr: m.iterErr, data: make(map[string][]byte)}
	for k, v := range m.data {
		if o != nil {
			if o.LowerBound != nil && k < string(o.LowerBound) {
				continue
			}
			if o.UpperBound != nil && k >= string(o.UpperBound) {
				continue
			}
		}
		it.keys = append(it.keys, k)
		it.data[k] = v
	}
	sort.Strings(it.keys)
	return it, nil
}

func (m *mockDB) NewBatch() Batch {
	return &mockBatch{parent: m}
}

func (m *mockDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

func (m *mockDB) snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = string(v)
	}
	return out
}

// mockIterator iterates a sorted copy of the data taken at NewIter.
type mockIterator struct {
	keys    []string
	data    map[string][]byte
	pos     int
	iterErr error
}

func (m *mockIterator) First() bool {
	m.pos = 0
	return m.Valid()
}

func (m *mockIterator) Next() bool {
	m.pos++
	return m.Valid()
}

func (m *mockIterator) Valid() bool {
	return m.pos >= 0 && m.pos < len(m.keys)
}

func (m *mockIterator) Key() []byte {
	if !m.Valid() {
		return nil
	}
	return []byte(m.keys[m.pos])
}

func (m *mockIterator) Value() []byte {
	if !m.Valid() {
		return nil
	}
	return m.data[m.keys[m.pos]]
}

func (m *mockIterator) Error() error { return m.iterErr }

func (m *mockIterator) Close() error { return nil }

type batchOp struct {
	isSet bool
	key   []byte
	value []byte
}

// mockBatch buffers operations and applies them only on Commit.
type mockBatch struct {
	parent *mockDB
	ops    []batchOp
	sets   int
}

func (b *mockBatch) Set(key, value []byte, _ *pebble.WriteOptions) error {
	b.sets++
	if b.parent.setErr != nil && (b.parent.failOnSet == 0 || b.parent.failOnSet == b.sets) {
		return b.parent.setErr
	}
	b.ops = append(b.ops, batchOp{isSet: true, key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

func (b *mockBatch) Delete(key []byte, _ *pebble.WriteOptions) error {
	if b.parent.deleteErr != nil {
		return b.parent.deleteErr
	}
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...)})
	return nil
}

func (b *mockBatch) Commit(_ *pebble.WriteOptions) error {
	if b.parent.commitErr != nil {
		return b.parent.commitErr
	}

	b.parent.mu.Lock()
	defer b.parent.mu.Unlock()

	for _, op := range b.ops {
		if op.isSet {
			b.parent.data[string(op.key)] = op.value
		} else {
			delete(b.parent.data, string(op.key))
		}
	}
	b.parent.commits++
	return nil
}

func (b *mockBatch) Close() error { return nil }
