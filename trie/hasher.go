package trie

import (
	"fmt"

	"github.com/ethnode/discv4trie/common"
	"github.com/ethnode/discv4trie/cryptoutil"
	"github.com/ethnode/discv4trie/rlp"
)

// emptyRoot is the well-known empty-trie root hash, keccak256(rlp("")),
// per spec section 6.4.
var emptyRoot = cryptoutil.Keccak256Hash([]byte{0x80})

// encodeNode[V] RLP-encodes a node's own content (not a reference to
// it). Calling it on a Stored node is a programming error: per spec
// section 3.5, rlp() is undefined for Stored nodes, only rlpRef() may
// be called without loading.
func encodeNode[V any](n Node[V], ser Serializer[V]) ([]byte, error) {
	switch n := n.(type) {
	case nullNode:
		return []byte{0x80}, nil
	case leafNode[V]:
		valEnc, err := ser.Marshal(n.Val)
		if err != nil {
			return nil, fmt.Errorf("trie: marshal leaf value: %w", err)
		}
		return encodePathList(n.Path, rlp.AppendBytes(nil, valEnc))
	case extensionNode[V]:
		childRef, err := rlpRef(n.Child, ser)
		if err != nil {
			return nil, err
		}
		return encodePathList(n.Path, childRef)
	case branchNode[V]:
		var payload []byte
		for i := 0; i < 16; i++ {
			ref, err := rlpRef(n.Children[i], ser)
			if err != nil {
				return nil, err
			}
			payload = append(payload, ref...)
		}
		valEnc, err := encodeOptionalValue(n.Val, ser)
		if err != nil {
			return nil, err
		}
		payload = append(payload, valEnc...)
		return wrapListPooled(payload), nil
	case *storedNode[V]:
		return nil, fmt.Errorf("trie: cannot compute rlp() of an unloaded stored node %s, use rlpRef", n.Hash)
	default:
		return nil, fmt.Errorf("trie: unknown node type %T", n)
	}
}

// encodePathList builds the 2-element RLP list shared by leaf and
// extension nodes: the hex-prefix-compacted path, then a second element
// that is already a fully-formed RLP encoding (a value string or a
// child reference).
func encodePathList(path []byte, second []byte) ([]byte, error) {
	payload := rlp.AppendBytes(nil, EncodePath(path))
	payload = append(payload, second...)
	return wrapListPooled(payload), nil
}

// wrapListPooled wraps an already-encoded RLP payload in a list header
// using the zero-reflection append-style encoder (spec section 3.5's
// node encoding is on the hot path of every hash/commit), rather than
// rlp.WrapList's allocate-and-copy.
func wrapListPooled(payload []byte) []byte {
	out := rlp.AppendListHeader(make([]byte, 0, len(payload)+9), len(payload))
	return append(out, payload...)
}

func encodeOptionalValue[V any](val *V, ser Serializer[V]) ([]byte, error) {
	if val == nil {
		return []byte{0x80}, nil
	}
	enc, err := ser.Marshal(*val)
	if err != nil {
		return nil, fmt.Errorf("trie: marshal branch value: %w", err)
	}
	return rlp.AppendBytes(nil, enc), nil
}

// rlpRef returns n's RLP reference for inclusion in a parent node: the
// raw RLP bytes if under 32 bytes (inline), otherwise the RLP-encoded
// keccak256 of the content. A Stored child never needs loading, since
// its own Hash already is the reference.
func rlpRef[V any](n Node[V], ser Serializer[V]) ([]byte, error) {
	if IsNull(n) {
		return []byte{0x80}, nil
	}
	if s, ok := n.(*storedNode[V]); ok {
		return rlp.EncodeBytes32(s.Hash), nil
	}
	enc, err := encodeNode(n, ser)
	if err != nil {
		return nil, err
	}
	if len(enc) < 32 {
		return enc, nil
	}
	return rlp.EncodeBytes32(cryptoutil.Keccak256Hash(enc)), nil
}

// HashOf computes a node's content hash: keccak256(rlp(n)) for everything
// but Null (the well-known empty-trie root) and Stored (whose Hash field
// already is the answer, without needing to load).
func HashOf[V any](n Node[V], ser Serializer[V]) (common.Hash, error) {
	if IsNull(n) {
		return emptyRoot, nil
	}
	if s, ok := n.(*storedNode[V]); ok {
		return s.Hash, nil
	}
	enc, err := encodeNode(n, ser)
	if err != nil {
		return common.Hash{}, err
	}
	return cryptoutil.Keccak256Hash(enc), nil
}
