package trie

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethnode/discv4trie/common"
)

func TestNull_CanonicalAndIsNull(t *testing.T) {
	a := Null[[]byte]()
	b := Null[[]byte]()
	if a != b {
		t.Fatal("Null should return the same canonical value every call")
	}
	if !IsNull(a) {
		t.Fatal("IsNull(Null()) should be true")
	}
	if IsNull(leafNode[[]byte]{Path: []byte{Terminator}, Val: []byte("v")}) {
		t.Fatal("IsNull(leaf) should be false")
	}
}

func TestNodeVariants_SatisfyNodeInterface(t *testing.T) {
	var variants = []Node[[]byte]{
		Null[[]byte](),
		leafNode[[]byte]{Path: []byte{1, Terminator}, Val: []byte("v")},
		extensionNode[[]byte]{Path: []byte{1}, Child: Null[[]byte]()},
		branchNode[[]byte]{},
		newStoredNode[[]byte](common.Hash{}, NewInMemoryFactory[[]byte](ByteSerializer{}), nil),
	}
	for i, v := range variants {
		if v == nil {
			t.Fatalf("variant %d is a nil Node", i)
		}
	}
}

func TestStoredNode_PreloadedSkipsRetrieve(t *testing.T) {
	factory := &countingFactory{Factory: NewInMemoryFactory[[]byte](ByteSerializer{})}
	preloaded := leafNode[[]byte]{Path: []byte{Terminator}, Val: []byte("preloaded")}
	s := newStoredNode[[]byte](common.Hash{0x01}, factory, preloaded)

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ln, ok := got.(leafNode[[]byte])
	if !ok || string(ln.Val) != "preloaded" {
		t.Fatalf("Load returned %#v, want the preloaded leaf", got)
	}
	if factory.retrieveCalls.Load() != 0 {
		t.Fatal("a preloaded storedNode should never call Retrieve")
	}
}

func TestStoredNode_LoadFetchesFromStore(t *testing.T) {
	store := NewMapStore()
	factory := NewStoredFactory[[]byte](store, ByteSerializer{})

	leaf, err := factory.Leaf([]byte{0x01, Terminator}, bytesRepeat('v', 50))
	if err != nil {
		t.Fatalf("Leaf: %v", err)
	}
	stored, ok := leaf.(*storedNode[[]byte])
	if !ok {
		t.Fatalf("expected a 50-byte-value leaf to be persisted as Stored, got %T", leaf)
	}
	stored.Unload()

	loaded, err := stored.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ln, ok := loaded.(leafNode[[]byte])
	if !ok {
		t.Fatalf("expected leafNode, got %T", loaded)
	}
	if !equalBytes(ln.Val, bytesRepeat('v', 50)) {
		t.Fatalf("loaded value mismatch")
	}
}

func TestStoredNode_UnloadForcesReload(t *testing.T) {
	store := NewMapStore()
	factory := &countingFactory{Factory: NewStoredFactory[[]byte](store, ByteSerializer{})}

	path := []byte{0x02, Terminator}
	enc, err := encodeNode(leafNode[[]byte]{Path: path, Val: bytesRepeat('x', 50)}, ByteSerializer{})
	if err != nil {
		t.Fatal(err)
	}
	hash := common.BytesToHash(bytesRepeat(0xAB, 32))
	if err := store.Put(hash, enc); err != nil {
		t.Fatal(err)
	}

	s := newStoredNode[[]byte](hash, factory, nil)
	ctx := context.Background()
	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if got := factory.retrieveCalls.Load(); got != 1 {
		t.Fatalf("Retrieve called %d times before Unload, want 1 (cache should serve the second Load)", got)
	}

	s.Unload()
	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("Load after Unload: %v", err)
	}
	if got := factory.retrieveCalls.Load(); got != 2 {
		t.Fatalf("Retrieve called %d times total, want 2 (Unload should force a reload)", got)
	}
}

// TestStoredNode_ConcurrentLoadSharesOneRetrieve covers spec section
// 4.5's CAS loop: many concurrent Load callers on the same unloaded
// storedNode must share a single Retrieve call.
func TestStoredNode_ConcurrentLoadSharesOneRetrieve(t *testing.T) {
	store := NewMapStore()
	factory := &countingFactory{Factory: NewStoredFactory[[]byte](store, ByteSerializer{}), block: make(chan struct{})}

	path := append(append([]byte{}, bytesRepeat(0x03, 40)...), Terminator)
	enc, err := encodeNode(leafNode[[]byte]{Path: path, Val: []byte("shared")}, ByteSerializer{})
	if err != nil {
		t.Fatal(err)
	}
	hash := common.BytesToHash(bytesRepeat(0xCD, 32))
	if err := store.Put(hash, enc); err != nil {
		t.Fatal(err)
	}

	s := newStoredNode[[]byte](hash, factory, nil)
	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	results := make([]Node[[]byte], n)
	var started sync.WaitGroup
	started.Add(n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i], errs[i] = s.Load(context.Background())
		}(i)
	}
	started.Wait()
	close(factory.block)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Load[%d]: %v", i, err)
		}
		ln, ok := results[i].(leafNode[[]byte])
		if !ok || string(ln.Val) != "shared" {
			t.Fatalf("Load[%d] = %#v, want the shared leaf", i, results[i])
		}
	}
	if got := factory.retrieveCalls.Load(); got != 1 {
		t.Fatalf("Retrieve called %d times, want exactly 1 across %d concurrent loaders", got, n)
	}
}

func bytesRepeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// countingFactory wraps a real Factory and counts Retrieve calls,
// optionally blocking each call on a channel close to widen the race
// window for concurrent-load tests.
type countingFactory struct {
	Factory[[]byte]
	retrieveCalls atomic.Int64
	block         chan struct{}
}

func (f *countingFactory) Retrieve(hash common.Hash) (Node[[]byte], error) {
	if f.block != nil {
		<-f.block
	}
	f.retrieveCalls.Add(1)
	return f.Factory.Retrieve(hash)
}
