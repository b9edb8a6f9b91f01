package trie

import (
	"context"
	"fmt"
)

// get, put and remove are the three pure visitors of spec section 4.2:
// each walks a node for the nibble path p and returns a (possibly new)
// node, never mutating its input. Persistence side effects — writing a
// newly built node to a backing store — live entirely in the Factory
// that get/put/remove call into; the visitors themselves know nothing
// about storage.
//
// A BytesToPath-derived path always ends in the Terminator nibble, so
// every recursive step that reaches a leaf or branch dispatch still has
// at least that nibble left; none of the three visitors needs to guard
// against running off the end of p.

// resolve loads a Stored placeholder into its concrete variant. Every
// other node type is already concrete and is returned unchanged.
func resolve[V any](ctx context.Context, n Node[V]) (Node[V], error) {
	if s, ok := n.(*storedNode[V]); ok {
		return s.Load(ctx)
	}
	return n, nil
}

func get[V any](ctx context.Context, n Node[V], p []byte) (Node[V], error) {
	switch n := n.(type) {
	case nullNode:
		return n, nil
	case leafNode[V]:
		if CommonPrefixLen(n.Path, p) == len(n.Path) {
			return n, nil
		}
		return Null[V](), nil
	case extensionNode[V]:
		k := CommonPrefixLen(n.Path, p)
		if k < len(n.Path) {
			return Null[V](), nil
		}
		return get(ctx, n.Child, p[k:])
	case branchNode[V]:
		if p[0] == Terminator {
			return n, nil
		}
		return get(ctx, n.Children[p[0]], p[1:])
	case *storedNode[V]:
		loaded, err := n.Load(ctx)
		if err != nil {
			return nil, err
		}
		return get(ctx, loaded, p)
	default:
		return nil, fmt.Errorf("trie: get: unhandled node type %T", n)
	}
}

func put[V any](ctx context.Context, n Node[V], p []byte, val V, f Factory[V]) (Node[V], error) {
	switch n := n.(type) {
	case nullNode:
		return f.Leaf(p, val)

	case leafNode[V]:
		k := CommonPrefixLen(n.Path, p)
		if k == len(n.Path) && k == len(p) {
			return f.Leaf(n.Path, val)
		}
		var children [16]Node[V]
		for i := range children {
			children[i] = Null[V]()
		}
		existing, err := f.Leaf(n.Path[k+1:], n.Val)
		if err != nil {
			return nil, err
		}
		children[n.Path[k]] = existing
		fresh, err := f.Leaf(p[k+1:], val)
		if err != nil {
			return nil, err
		}
		children[p[k]] = fresh
		branch, err := f.Branch(children, nil)
		if err != nil {
			return nil, err
		}
		if k > 0 {
			return f.Extension(p[:k], branch)
		}
		return branch, nil

	case extensionNode[V]:
		k := CommonPrefixLen(n.Path, p)
		if k == len(n.Path) {
			child, err := put(ctx, n.Child, p[k:], val, f)
			if err != nil {
				return nil, err
			}
			return f.Extension(n.Path, child)
		}
		var branchChild Node[V]
		var err error
		if k+1 == len(n.Path) {
			branchChild = n.Child
		} else {
			branchChild, err = f.Extension(n.Path[k+1:], n.Child)
			if err != nil {
				return nil, err
			}
		}
		var children [16]Node[V]
		for i := range children {
			children[i] = Null[V]()
		}
		children[n.Path[k]] = branchChild
		fresh, err := f.Leaf(p[k+1:], val)
		if err != nil {
			return nil, err
		}
		children[p[k]] = fresh
		branch, err := f.Branch(children, nil)
		if err != nil {
			return nil, err
		}
		if k > 0 {
			return f.Extension(p[:k], branch)
		}
		return branch, nil

	case branchNode[V]:
		if p[0] == Terminator {
			v := val
			return f.Branch(n.Children, &v)
		}
		newChild, err := put(ctx, n.Children[p[0]], p[1:], val, f)
		if err != nil {
			return nil, err
		}
		return replaceChild(ctx, n, int(p[0]), newChild, f)

	case *storedNode[V]:
		loaded, err := n.Load(ctx)
		if err != nil {
			return nil, err
		}
		return put(ctx, loaded, p, val, f)

	default:
		return nil, fmt.Errorf("trie: put: unhandled node type %T", n)
	}
}

func remove[V any](ctx context.Context, n Node[V], p []byte, f Factory[V]) (Node[V], error) {
	switch n := n.(type) {
	case nullNode:
		return n, nil

	case leafNode[V]:
		if CommonPrefixLen(n.Path, p) == len(n.Path) {
			return Null[V](), nil
		}
		return n, nil

	case extensionNode[V]:
		k := CommonPrefixLen(n.Path, p)
		if k < len(n.Path) {
			return n, nil
		}
		newChild, err := remove(ctx, n.Child, p[k:], f)
		if err != nil {
			return nil, err
		}
		return collapseExtension(ctx, n.Path, newChild, f)

	case branchNode[V]:
		if p[0] == Terminator {
			return removeValue(ctx, n, f)
		}
		newChild, err := remove(ctx, n.Children[p[0]], p[1:], f)
		if err != nil {
			return nil, err
		}
		return replaceChild(ctx, n, int(p[0]), newChild, f)

	case *storedNode[V]:
		loaded, err := n.Load(ctx)
		if err != nil {
			return nil, err
		}
		return remove(ctx, loaded, p, f)

	default:
		return nil, fmt.Errorf("trie: remove: unhandled node type %T", n)
	}
}

// replaceChild implements spec section 4.3's branch collapsing rule,
// shared by put and remove: substitute newChild at index i, then, if
// that leaves the slot Null, either flatten the branch to a leaf (value
// present, no children left), flatten it to its sole surviving child
// (no value, exactly one child left), or leave it a plain branch.
func replaceChild[V any](ctx context.Context, n branchNode[V], i int, newChild Node[V], f Factory[V]) (Node[V], error) {
	children := n.Children
	children[i] = newChild

	if !IsNull(newChild) {
		return f.Branch(children, n.Val)
	}
	if n.Val != nil && allNull(children) {
		return f.Leaf([]byte{byte(i)}, *n.Val)
	}
	if n.Val == nil {
		if j, only, ok := soleNonNullChild(children); ok {
			return replacePath(ctx, only, []byte{byte(j)}, f)
		}
	}
	return f.Branch(children, n.Val)
}

// removeValue implements spec section 4.3's removeValue: clearing a
// branch's value collapses it to its sole surviving child, if there is
// exactly one, otherwise it stays a valueless branch.
func removeValue[V any](ctx context.Context, n branchNode[V], f Factory[V]) (Node[V], error) {
	if j, only, ok := soleNonNullChild(n.Children); ok {
		return replacePath(ctx, only, []byte{byte(j)}, f)
	}
	return f.Branch(n.Children, nil)
}

// collapseExtension implements spec section 4.3's "replaceChild on
// Extension collapses through the child": a Null child erases the
// extension entirely, otherwise the extension's own path is merged into
// (or wrapped around) whatever the child resolves to.
func collapseExtension[V any](ctx context.Context, ep []byte, newChild Node[V], f Factory[V]) (Node[V], error) {
	if IsNull(newChild) {
		return Null[V](), nil
	}
	return replacePath(ctx, newChild, ep, f)
}

// replacePath prepends prefix to n's own path and rebuilds n at that
// path: a leaf's path is extended, an extension's path is extended
// (keeping the same child), and a branch is wrapped in a new extension
// (or returned bare, if prefix is empty — the case where the branch
// itself is the new root of its subtree).
func replacePath[V any](ctx context.Context, n Node[V], prefix []byte, f Factory[V]) (Node[V], error) {
	resolved, err := resolve(ctx, n)
	if err != nil {
		return nil, err
	}
	switch resolved := resolved.(type) {
	case leafNode[V]:
		return f.Leaf(joinPath(prefix, resolved.Path), resolved.Val)
	case extensionNode[V]:
		return f.Extension(joinPath(prefix, resolved.Path), resolved.Child)
	case branchNode[V]:
		if len(prefix) == 0 {
			return resolved, nil
		}
		return f.Extension(prefix, resolved)
	default:
		return nil, fmt.Errorf("trie: replacePath: unhandled node type %T", resolved)
	}
}

func joinPath(prefix, path []byte) []byte {
	joined := make([]byte, 0, len(prefix)+len(path))
	joined = append(joined, prefix...)
	joined = append(joined, path...)
	return joined
}

func allNull[V any](children [16]Node[V]) bool {
	for _, c := range children {
		if !IsNull(c) {
			return false
		}
	}
	return true
}

// soleNonNullChild reports the index and value of children's only
// non-null entry. ok is false if zero or more than one entry is non-null.
func soleNonNullChild[V any](children [16]Node[V]) (idx int, only Node[V], ok bool) {
	found := -1
	for i, c := range children {
		if !IsNull(c) {
			if found >= 0 {
				return 0, nil, false
			}
			found = i
		}
	}
	if found < 0 {
		return 0, nil, false
	}
	return found, children[found], true
}
