package trie

import (
	"testing"

	"github.com/ethnode/discv4trie/common"
)

func TestDecodeStoredNode_RoundTripsLeaf(t *testing.T) {
	leaf := leafNode[[]byte]{Path: []byte{0x01, 0x02, Terminator}, Val: []byte("hello")}
	enc, err := encodeNode[[]byte](leaf, ByteSerializer{})
	if err != nil {
		t.Fatal(err)
	}
	factory := NewInMemoryFactory[[]byte](ByteSerializer{})
	got, err := decodeStoredNode[[]byte](common.Hash{0x01}, enc, factory, ByteSerializer{})
	if err != nil {
		t.Fatal(err)
	}
	ln, ok := got.(leafNode[[]byte])
	if !ok || !equalBytes(ln.Path, leaf.Path) || !equalBytes(ln.Val, leaf.Val) {
		t.Fatalf("decodeStoredNode = %#v, want %#v", got, leaf)
	}
}

func TestDecodeStoredNode_BranchWithInlineAndHashChildren(t *testing.T) {
	store := NewMapStore()
	factory := NewStoredFactory[[]byte](store, ByteSerializer{})

	var children [16]Node[[]byte]
	for i := range children {
		children[i] = Null[[]byte]()
	}
	children[0] = leafNode[[]byte]{Path: []byte{Terminator}, Val: []byte("inline")}
	children[1] = leafNode[[]byte]{Path: []byte{Terminator}, Val: bytesRepeat('q', 64)}
	branchVal := []byte("branch-val")
	branch := branchNode[[]byte]{Children: children, Val: &branchVal}

	enc, err := encodeNode[[]byte](branch, ByteSerializer{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := decodeStoredNode[[]byte](common.Hash{0x02}, enc, factory, ByteSerializer{})
	if err != nil {
		t.Fatal(err)
	}
	bn, ok := got.(branchNode[[]byte])
	if !ok {
		t.Fatalf("expected branchNode, got %T", got)
	}
	if bn.Val == nil || string(*bn.Val) != "branch-val" {
		t.Fatalf("branch value = %v, want branch-val", bn.Val)
	}
	inline, ok := bn.Children[0].(leafNode[[]byte])
	if !ok || string(inline.Val) != "inline" {
		t.Fatalf("children[0] = %#v, want inline leaf", bn.Children[0])
	}
	if _, ok := bn.Children[1].(*storedNode[[]byte]); !ok {
		t.Fatalf("children[1] = %T, want an unloaded Stored hash reference", bn.Children[1])
	}
}

func TestDecodeStoredNode_RejectsWrongListLength(t *testing.T) {
	// A list of length 3 cannot be a valid node (only 1, 2 or 17 are).
	three := []Node[[]byte]{
		leafNode[[]byte]{Path: []byte{Terminator}, Val: []byte("a")},
		leafNode[[]byte]{Path: []byte{Terminator}, Val: []byte("b")},
		leafNode[[]byte]{Path: []byte{Terminator}, Val: []byte("c")},
	}
	var payload []byte
	for _, n := range three {
		enc, err := encodeNode[[]byte](n, ByteSerializer{})
		if err != nil {
			t.Fatal(err)
		}
		payload = append(payload, enc...)
	}
	data := append([]byte{0xc0 + byte(len(payload))}, payload...)

	factory := NewInMemoryFactory[[]byte](ByteSerializer{})
	if _, err := decodeStoredNode[[]byte](common.Hash{0x03}, data, factory, ByteSerializer{}); err == nil {
		t.Fatal("a 3-element list should be rejected as a corrupt node")
	}
}

func TestDecodeStoredNode_RejectsNonCanonicalLongForm(t *testing.T) {
	// A one-byte list payload encoded with the long-form (>= 0xf8) length
	// prefix is non-canonical: rlp.Stream must reject it rather than
	// silently accept the oversized encoding.
	data := []byte{0xf8, 0x01, 0x80}
	factory := NewInMemoryFactory[[]byte](ByteSerializer{})
	if _, err := decodeStoredNode[[]byte](common.Hash{0x04}, data, factory, ByteSerializer{}); err == nil {
		t.Fatal("a non-canonical long-form list length should be rejected")
	}
}
