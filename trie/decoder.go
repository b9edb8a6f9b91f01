package trie

import (
	"fmt"

	"github.com/ethnode/discv4trie/common"
	"github.com/ethnode/discv4trie/rlp"
)

// decodeStoredNode decodes the RLP content fetched for hash into a
// Node[V], per spec section 4.4: the content is a list of length 1
// (Null), 2 (leaf or extension, disambiguated by the path's terminator
// bit), or 17 (branch, 16 children plus a value slot). Any other length
// is a corruption error naming the offending hash. Nested list elements
// decode as inline children; 32-byte string elements become unloaded
// Stored references resolved through the same factory. Splitting is done
// by rlp.Stream, so a non-canonically-encoded node (oversized length
// prefix, leading zero in a length, a single byte that should have been
// encoded bare) is rejected the same way every other RLP consumer in
// this module rejects one.
func decodeStoredNode[V any](hash common.Hash, data []byte, factory Factory[V], ser Serializer[V]) (Node[V], error) {
	elems, err := splitRLPList(data)
	if err != nil {
		return nil, fmt.Errorf("trie: corrupt node %s: %w", hash, err)
	}

	switch len(elems) {
	case 1:
		return Null[V](), nil
	case 2:
		return decodeShortNode(hash, elems, factory, ser)
	case 17:
		return decodeBranchNode(hash, elems, factory, ser)
	default:
		return nil, fmt.Errorf("trie: corrupt node %s: expected a list of length 1, 2 or 17, got %d", hash, len(elems))
	}
}

func decodeShortNode[V any](hash common.Hash, elems []rlpElem, factory Factory[V], ser Serializer[V]) (Node[V], error) {
	path := DecodePath(elems[0].content)

	if hasTerm(path) {
		val, err := ser.Unmarshal(elems[1].content)
		if err != nil {
			return nil, fmt.Errorf("trie: corrupt node %s: unmarshal leaf value: %w", hash, err)
		}
		return leafNode[V]{Path: path, Val: val}, nil
	}

	child, err := decodeChildRef(elems[1], factory, ser)
	if err != nil {
		return nil, fmt.Errorf("trie: corrupt node %s: extension child: %w", hash, err)
	}
	return extensionNode[V]{Path: path, Child: child}, nil
}

func decodeBranchNode[V any](hash common.Hash, elems []rlpElem, factory Factory[V], ser Serializer[V]) (Node[V], error) {
	var n branchNode[V]
	for i := 0; i < 16; i++ {
		child, err := decodeChildRef(elems[i], factory, ser)
		if err != nil {
			return nil, fmt.Errorf("trie: corrupt node %s: child %d: %w", hash, i, err)
		}
		n.Children[i] = child
	}
	if len(elems[16].content) > 0 {
		val, err := ser.Unmarshal(elems[16].content)
		if err != nil {
			return nil, fmt.Errorf("trie: corrupt node %s: unmarshal branch value: %w", hash, err)
		}
		n.Val = &val
	}
	return n, nil
}

// decodeChildRef decodes one child slot: empty content is Null; an
// element that was itself a nested list is an inline child (decoded
// recursively from its own raw encoding); a 32-byte string is a hash
// reference, wrapped as an unloaded Stored node.
func decodeChildRef[V any](e rlpElem, factory Factory[V], ser Serializer[V]) (Node[V], error) {
	if e.isList {
		return decodeStoredNode[V](common.Hash{}, e.raw, factory, ser)
	}
	if len(e.content) == 0 {
		return Null[V](), nil
	}
	if len(e.content) != 32 {
		return nil, fmt.Errorf("child reference has length %d, want 32", len(e.content))
	}
	return newStoredNode[V](common.BytesToHash(e.content), factory, nil), nil
}

// rlpElem is one top-level element of a decoded RLP list: content is the
// element's payload (string contents, or a list's inner payload when
// isList), and raw is the element's full encoding (header + payload),
// needed to re-decode a nested list recursively.
type rlpElem struct {
	content []byte
	raw     []byte
	isList  bool
}

// splitRLPList parses a single top-level RLP list into its elements,
// using rlp.Stream's own List/RawElement reads so a node's encoding is
// held to the same canonical-size rules as every other decode path in
// this module.
func splitRLPList(data []byte) ([]rlpElem, error) {
	s := rlp.NewStreamFromBytes(data)
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var elems []rlpElem
	for !s.IsComplete() {
		content, raw, isList, err := s.RawElement()
		if err != nil {
			return nil, err
		}
		elems = append(elems, rlpElem{content: content, raw: raw, isList: isList})
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return elems, nil
}
