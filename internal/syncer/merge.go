package syncer

import (
	"sort"

	"github.com/listenupapp/tagsync/internal/domain"
)

// MergeResult is the outcome of merging one shard.
type MergeResult struct {
	Merged map[string]*domain.PostTagRecord
	// LocalWins lists posts where the local record replaced or added to remote.
	LocalWins []string
	// RemoteNewer lists posts present on both sides where remote is newer.
	RemoteNewer []string
	// RemoteOnly lists posts only the remote side has.
	RemoteOnly []string
}

// Merge applies whole-record last-write-wins. The merged map starts as the
// remote map; a local record replaces its remote counterpart when the remote
// is missing or strictly older. Ties keep the remote record.
func Merge(local, remote map[string]*domain.PostTagRecord) MergeResult {
	res := MergeResult{Merged: make(map[string]*domain.PostTagRecord, len(remote)+len(local))}
	for id, r := range remote {
		res.Merged[id] = r
	}

	for id, l := range local {
		r, ok := remote[id]
		switch {
		case !ok || l.UpdatedAt > r.UpdatedAt:
			res.Merged[id] = l
			res.LocalWins = append(res.LocalWins, id)
		case r.UpdatedAt > l.UpdatedAt:
			res.RemoteNewer = append(res.RemoteNewer, id)
		}
	}
	for id := range remote {
		if _, ok := local[id]; !ok {
			res.RemoteOnly = append(res.RemoteOnly, id)
		}
	}

	sort.Strings(res.LocalWins)
	sort.Strings(res.RemoteNewer)
	sort.Strings(res.RemoteOnly)
	return res
}
