// Package shard assigns posts to remote shard files.
package shard

import (
	"strconv"
	"strings"
)

// Count is the number of shards. Shard indexes are 0 through Count-1.
const Count = 10

// ManifestFileName is the document file describing the document itself.
const ManifestFileName = "manifest.json"

const (
	filePrefix = "tags_"
	fileSuffix = ".json"
)

// Of returns the shard of a post: the numeric value of the last character
// when it is a decimal digit, otherwise 0.
func Of(postID string) int {
	if postID == "" {
		return 0
	}
	c := postID[len(postID)-1]
	if c < '0' || c > '9' {
		return 0
	}
	return int(c - '0')
}

// FileName returns the remote file name holding shard idx.
func FileName(idx int) string {
	return filePrefix + strconv.Itoa(idx) + fileSuffix
}

// ParseFileName reports the shard index of a remote file name.
func ParseFileName(name string) (int, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if len(digits) != 1 {
		return 0, false
	}
	idx, err := strconv.Atoi(digits)
	if err != nil || idx < 0 || idx >= Count {
		return 0, false
	}
	return idx, true
}

// Valid reports whether idx is a shard index.
func Valid(idx int) bool {
	return idx >= 0 && idx < Count
}

// All returns every shard index in ascending order.
func All() []int {
	out := make([]int, Count)
	for i := range out {
		out[i] = i
	}
	return out
}
