package manifest

import "sort"

// DiffResult holds the three disjoint sets produced by Diff.
//
// ToRemove must be applied before relying on the disk state of
// ToAdd and ToUpdate.
type DiffResult struct {
	// ToAdd holds remote descriptors whose path is absent locally.
	ToAdd []FileDescriptor
	// ToUpdate holds remote descriptors whose local counterpart differs.
	ToUpdate []FileDescriptor
	// ToRemove holds local descriptors whose path is absent remotely.
	ToRemove []FileDescriptor
}

// Diff compares local against remote.
//
// Content equality is decided by FileDescriptor.Equivalent; a shared path
// alone never means unchanged. Set order carries no meaning; each set is
// sorted by path for stable display.
func Diff(local, remote *Manifest) *DiffResult {
	res := &DiffResult{
		ToAdd:    []FileDescriptor{},
		ToUpdate: []FileDescriptor{},
		ToRemove: []FileDescriptor{},
	}

	localIdx := local.Index()
	remoteIdx := remote.Index()

	for path, lfi := range localIdx {
		rfi, ok := remoteIdx[path]
		if !ok {
			res.ToRemove = append(res.ToRemove, lfi)
			continue
		}
		if !lfi.Equivalent(rfi) {
			res.ToUpdate = append(res.ToUpdate, rfi)
		}
	}

	for path, rfi := range remoteIdx {
		if _, ok := localIdx[path]; !ok {
			res.ToAdd = append(res.ToAdd, rfi)
		}
	}

	sortByPath(res.ToAdd)
	sortByPath(res.ToUpdate)
	sortByPath(res.ToRemove)
	return res
}

// Empty reports whether the diff requires no action.
func (d *DiffResult) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToUpdate) == 0 && len(d.ToRemove) == 0
}

// Transfers returns ToAdd followed by ToUpdate: everything to download.
func (d *DiffResult) Transfers() []FileDescriptor {
	out := make([]FileDescriptor, 0, len(d.ToAdd)+len(d.ToUpdate))
	out = append(out, d.ToAdd...)
	return append(out, d.ToUpdate...)
}

// DownloadSize returns the total bytes of ToAdd and ToUpdate.
func (d *DiffResult) DownloadSize() int64 {
	var n int64
	for _, fi := range d.ToAdd {
		n += fi.Size
	}
	for _, fi := range d.ToUpdate {
		n += fi.Size
	}
	return n
}

func sortByPath(s []FileDescriptor) {
	sort.Slice(s, func(i, j int) bool { return s[i].Path < s[j].Path })
}
