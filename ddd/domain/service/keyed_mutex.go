package service

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// KeyedMutex serializes work per key over a fixed set of shards. Two keys may
// share a shard; that only costs contention, never correctness.
type KeyedMutex struct {
	shards [lockShards]sync.Mutex
}

func (k *KeyedMutex) shard(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &k.shards[h.Sum32()%lockShards]
}

// Lock locks key and returns the unlock func.
func (k *KeyedMutex) Lock(key string) func() {
	m := k.shard(key)
	m.Lock()
	return m.Unlock
}
