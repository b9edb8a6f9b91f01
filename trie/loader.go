package trie

import (
	"context"

	"github.com/ethnode/discv4trie/log"
)

// Load implements the stored-node loader protocol of spec section 4.5:
// a populated soft reference returns immediately; otherwise the first
// caller to win the CAS on s.pending becomes the loader and invokes
// the factory, while every other concurrent caller awaits the same
// future.Result. A completed result is published to the soft reference
// before the pending slot is cleared, so a racing unload can never see
// a stale pending entry outlive its result.
func (s *storedNode[V]) Load(ctx context.Context) (Node[V], error) {
	if c := s.cached.Load(); c != nil {
		return *c, nil
	}

	result, isLoader := s.pending.ClaimOrSubscribe()
	if !isLoader {
		return result.Await(ctx)
	}

	if c := s.cached.Load(); c != nil {
		n := *c
		result.Complete(n)
		s.pending.Clear(result)
		return n, nil
	}

	n, err := s.factory.Retrieve(s.Hash)
	if err != nil {
		log.Default().Warn("trie: stored node retrieval failed", "hash", s.Hash, "err", err)
		result.CompleteError(err)
		s.pending.Clear(result)
		return nil, err
	}

	s.cached.Store(&n)
	result.Complete(n)
	s.pending.Clear(result)
	return n, nil
}
