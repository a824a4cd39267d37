package vfs

// Snapshot returns the tree as a flat path-to-content map covering every
// file. This is the serialization shape the persistence layer stores;
// Restore rebuilds an identical tree from it.
func (t *Tree) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string)
	for p, n := range t.nodes {
		if n.Kind == KindFile {
			out[p] = n.Content
		}
	}
	return out
}

// Restore replaces the entire tree contents with the given snapshot. The
// whole operation is atomic and counts as a single mutation: if any path in
// the snapshot is invalid, the tree is left unchanged.
func (t *Tree) Restore(snapshot map[string]string) error {
	staged := NewTree()
	staged.now = t.now
	for p, content := range snapshot {
		norm, err := Normalize(p)
		if err != nil {
			return err
		}
		if err := staged.WriteFile(norm, content); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = staged.nodes
	t.children = staged.children
	t.version++
	return nil
}
