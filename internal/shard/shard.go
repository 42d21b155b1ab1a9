// Package shard maps keys onto a fixed number of lock partitions.
package shard

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const Count = 32

func OfString(key string) int {
	return int(xxhash.Sum64String(key) % Count)
}

func OfInt(key int64) int {
	return OfString(strconv.FormatInt(key, 10))
}
