package importer

import (
	"slices"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/listenupapp/tagsync/internal/domain"
)

// Diff classifies every remote record against local. Results are ordered by
// post id.
func Diff(local, remote map[string]*domain.PostTagRecord, opts DiffOptions) []DiffResult {
	var cmpOpts []cmp.Option
	if opts.IgnoreTagOrder {
		cmpOpts = append(cmpOpts, cmpopts.SortSlices(func(a, b string) bool { return a < b }))
	}

	out := make([]DiffResult, 0, len(remote))
	for postID, r := range remote {
		res := DiffResult{PostID: postID, Remote: r}
		l, ok := local[postID]
		switch {
		case !ok || l == nil:
			res.Status = StatusNew
		case cmp.Equal(l.Groups.Map(), r.Groups.Map(), cmpOpts...):
			res.Status = StatusSame
			res.Local = l
		default:
			res.Status = StatusConflict
			res.Local = l
		}
		out = append(out, res)
	}
	slices.SortFunc(out, func(a, b DiffResult) int { return comparePostIDs(a.PostID, b.PostID) })
	return out
}

// MergeGroups unions local and remote per group. Local group order comes
// first, then groups only the remote has; tags within each group are sorted.
func MergeGroups(local, remote domain.GroupMap) domain.GroupMap {
	var out domain.GroupMap
	for name, tags := range local.All() {
		out.Add(name, tags...)
	}
	for name, tags := range remote.All() {
		out.Add(name, tags...)
	}
	for _, name := range out.Names() {
		tags := out.Tags(name)
		slices.Sort(tags)
		out.Set(name, tags)
	}
	return out
}

// comparePostIDs orders numeric ids by value.
func comparePostIDs(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
