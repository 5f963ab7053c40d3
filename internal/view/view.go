package view

import (
	"fmt"
	"sort"
	"strings"
)

// FilterMode selects which entities pass the filter step.
type FilterMode string

// Supported filter modes.
const (
	FilterAll       FilterMode = "all"
	FilterFavorites FilterMode = "favorites"
	FilterDomains   FilterMode = "domains"
)

// GroupMode selects how the filtered entities are bucketed.
type GroupMode string

// Supported group modes.
const (
	GroupNone           GroupMode = "none"
	GroupType           GroupMode = "type"
	GroupRoom           GroupMode = "room"
	GroupState          GroupMode = "state"
	GroupFavoritesFirst GroupMode = "favorites_first"
)

// RoomUnassigned is the bucket for entities without a room attribute
// under GroupRoom. It always orders last.
const RoomUnassigned = "unassigned"

// Config is the active view specification: filter, group mode and
// search term. Exactly one Config is active per session; it changes
// only through explicit commands.
type Config struct {
	Filter  FilterMode
	Domains map[string]struct{} // populated when Filter == FilterDomains
	Group   GroupMode
	Search  string
}

// clone returns an independent copy of the config.
func (c Config) clone() Config {
	out := c
	if c.Domains != nil {
		out.Domains = make(map[string]struct{}, len(c.Domains))
		for d := range c.Domains {
			out.Domains[d] = struct{}{}
		}
	}
	return out
}

// DomainList returns the domain restriction sorted, for display.
func (c Config) DomainList() []string {
	out := make([]string, 0, len(c.Domains))
	for d := range c.Domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// ParseFilter parses a filter spec into a FilterMode and optional
// domain set. "all" and "favorites" are literal; anything else is a
// comma-separated domain list ("light" or "light,switch").
//
// Returns ErrInvalidFilter for an empty spec or empty domain names.
func ParseFilter(spec string) (FilterMode, map[string]struct{}, error) {
	switch spec {
	case string(FilterAll):
		return FilterAll, nil, nil
	case string(FilterFavorites):
		return FilterFavorites, nil, nil
	case "":
		return "", nil, fmt.Errorf("%w: empty filter spec", ErrInvalidFilter)
	}

	domains := make(map[string]struct{})
	for _, d := range strings.Split(spec, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			return "", nil, fmt.Errorf("%w: empty domain in %q", ErrInvalidFilter, spec)
		}
		domains[d] = struct{}{}
	}
	return FilterDomains, domains, nil
}

// ParseGroupMode parses a group mode name.
// Returns ErrUnknownGroupMode for anything unrecognised.
func ParseGroupMode(mode string) (GroupMode, error) {
	switch GroupMode(mode) {
	case GroupNone, GroupType, GroupRoom, GroupState, GroupFavoritesFirst:
		return GroupMode(mode), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGroupMode, mode)
	}
}
