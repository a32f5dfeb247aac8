package cache

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const indexPrefix = "idx:"

// KeyFor derives a stable key for a listing from its normalized parameters.
// Callers must pass a value whose JSON encoding is deterministic (structs, sorted maps).
func KeyFor(prefix string, params any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = []byte(err.Error())
	}
	return prefix + ":" + strconv.FormatUint(xxhash.Sum64(raw), 16)
}

// EntityKey is the cache key of a single entity, e.g. funko_42.
func EntityKey(prefix string, id any) string {
	switch v := id.(type) {
	case string:
		return prefix + "_" + v
	case int64:
		return prefix + "_" + strconv.FormatInt(v, 10)
	case int:
		return prefix + "_" + strconv.Itoa(v)
	default:
		raw, _ := json.Marshal(v)
		return prefix + "_" + string(raw)
	}
}

func indexKey(collection string) string {
	return indexPrefix + collection
}
