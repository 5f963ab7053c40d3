package view

import (
	"sort"
	"strings"

	"github.com/ferndale/homewatch/internal/entity"
)

// Compute derives the ordered entity id sequence for display.
//
// It is a pure function of its inputs: identical (entities, favorites,
// config) always yield the identical sequence. The pipeline is
// filter → group → in-bucket sort; total order is guaranteed by the
// (lowercased friendly name, id) sort key.
//
// Cost is linear in the entity count. Callers rerun it wholesale on
// every store upsert, favorites toggle and config change.
func Compute(entities []entity.Entity, favs map[string]struct{}, cfg Config) []string {
	matched := filterStep(entities, favs, cfg)

	switch cfg.Group {
	case GroupType:
		return groupBy(matched, func(e *entity.Entity) string { return e.Domain() }, nil)
	case GroupRoom:
		return groupBy(matched, roomKey, roomBucketOrder)
	case GroupState:
		return groupBy(matched, func(e *entity.Entity) string { return e.State }, nil)
	case GroupFavoritesFirst:
		return favoritesFirst(matched, favs)
	default: // GroupNone
		sortBucket(matched)
		return ids(matched)
	}
}

// filterStep applies the filter mode, then the search term.
func filterStep(entities []entity.Entity, favs map[string]struct{}, cfg Config) []*entity.Entity {
	search := strings.ToLower(cfg.Search)

	matched := make([]*entity.Entity, 0, len(entities))
	for i := range entities {
		e := &entities[i]

		switch cfg.Filter {
		case FilterFavorites:
			if _, ok := favs[e.ID]; !ok {
				continue
			}
		case FilterDomains:
			if _, ok := cfg.Domains[e.Domain()]; !ok {
				continue
			}
		}

		if search != "" &&
			!strings.Contains(strings.ToLower(e.FriendlyName()), search) &&
			!strings.Contains(strings.ToLower(e.ID), search) {
			continue
		}

		matched = append(matched, e)
	}
	return matched
}

// roomKey buckets by room attribute, defaulting to the unassigned bucket.
func roomKey(e *entity.Entity) string {
	if room, ok := e.Room(); ok {
		return room
	}
	return RoomUnassigned
}

// roomBucketOrder orders rooms alphabetically with unassigned last.
func roomBucketOrder(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == RoomUnassigned {
			return false
		}
		if keys[j] == RoomUnassigned {
			return true
		}
		return keys[i] < keys[j]
	})
}

// groupBy buckets entities by key, orders buckets (alphabetically unless
// an order func is given), sorts each bucket, and concatenates.
func groupBy(matched []*entity.Entity, key func(*entity.Entity) string, order func([]string)) []string {
	buckets := make(map[string][]*entity.Entity)
	for _, e := range matched {
		k := key(e)
		buckets[k] = append(buckets[k], e)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	if order != nil {
		order(keys)
	} else {
		sort.Strings(keys)
	}

	out := make([]string, 0, len(matched))
	for _, k := range keys {
		bucket := buckets[k]
		sortBucket(bucket)
		out = append(out, ids(bucket)...)
	}
	return out
}

// favoritesFirst produces exactly two buckets, each internally sorted.
func favoritesFirst(matched []*entity.Entity, favs map[string]struct{}) []string {
	var fav, rest []*entity.Entity
	for _, e := range matched {
		if _, ok := favs[e.ID]; ok {
			fav = append(fav, e)
		} else {
			rest = append(rest, e)
		}
	}
	sortBucket(fav)
	sortBucket(rest)
	return append(ids(fav), ids(rest)...)
}

// sortBucket orders entities by lowercased friendly name, ties broken by
// id, guaranteeing a deterministic total order.
func sortBucket(bucket []*entity.Entity) {
	sort.Slice(bucket, func(i, j int) bool {
		ni := strings.ToLower(bucket[i].FriendlyName())
		nj := strings.ToLower(bucket[j].FriendlyName())
		if ni != nj {
			return ni < nj
		}
		return bucket[i].ID < bucket[j].ID
	})
}

func ids(bucket []*entity.Entity) []string {
	out := make([]string, len(bucket))
	for i, e := range bucket {
		out[i] = e.ID
	}
	return out
}

// Counts tallies entities per filter bar slot: "all", "favorites" and
// one entry per domain in domains.
func Counts(entities []entity.Entity, favs map[string]struct{}, domains []string) map[string]int {
	counts := make(map[string]int, len(domains)+2)
	counts["all"] = len(entities)

	wanted := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		counts[d] = 0
		wanted[d] = struct{}{}
	}

	for i := range entities {
		e := &entities[i]
		if _, ok := favs[e.ID]; ok {
			counts["favorites"]++
		}
		if _, ok := wanted[e.Domain()]; ok {
			counts[e.Domain()]++
		}
	}
	return counts
}
