// Package cache holds the block caches behind blobstore.CachingStore.
//
// LRUBlockCache is a plain single-lock LRU; ShardedLRUBlockCache spreads
// keys over 64 of them with maphash so concurrent gallery streams do not
// serialize on one mutex. Both charge cached bytes to a
// resource.Controller when one is attached, which keeps cache growth
// inside the process memory budget.
package cache
