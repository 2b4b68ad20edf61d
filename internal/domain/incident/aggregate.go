package incident

import (
	"sort"
)

// Counts maps a group key to the number of records in that group.
type Counts map[string]int

// Total sums all group counts.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// KeyFunc derives a group key from a record.
type KeyFunc func(IncidentRecord) string

// ClusterKey groups by cluster, falling back to UnknownGroup.
func ClusterKey(r IncidentRecord) string {
	if r.Cluster == "" {
		return UnknownGroup
	}
	return r.Cluster
}

// RegionKey groups by region, falling back to UnknownGroup.
func RegionKey(r IncidentRecord) string {
	if r.Region == "" {
		return UnknownGroup
	}
	return r.Region
}

// typeSet builds a lookup for the selected types. A nil result means no
// filtering.
func typeSet(selected []string) map[string]struct{} {
	if len(selected) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(selected))
	for _, t := range selected {
		set[t] = struct{}{}
	}
	return set
}

func passes(set map[string]struct{}, r IncidentRecord) bool {
	if set == nil {
		return true
	}
	_, ok := set[r.Type]
	return ok
}

// FilterByTypes returns the records whose Type is in selected. An empty
// selection keeps every record. The input slice is never modified.
func FilterByTypes(records []IncidentRecord, selected []string) []IncidentRecord {
	set := typeSet(selected)
	out := make([]IncidentRecord, 0, len(records))
	for _, r := range records {
		if passes(set, r) {
			out = append(out, r)
		}
	}
	return out
}

// CountByGroup filters records by selected type and counts them per key.
// An empty selection means every record passes.
func CountByGroup(records []IncidentRecord, selected []string, key KeyFunc) Counts {
	set := typeSet(selected)
	counts := make(Counts)
	for _, r := range records {
		if passes(set, r) {
			counts[key(r)]++
		}
	}
	return counts
}

// CountByCluster is the first aggregation level.
func CountByCluster(records []IncidentRecord, selected []string) Counts {
	return CountByGroup(records, selected, ClusterKey)
}

// CountByRegion counts the records of one cluster per region.
func CountByRegion(records []IncidentRecord, cluster string, selected []string) Counts {
	return CountByGroup(InCluster(records, cluster), selected, RegionKey)
}

// InCluster returns the records whose cluster key equals cluster. Passing
// UnknownGroup selects the records without a cluster.
func InCluster(records []IncidentRecord, cluster string) []IncidentRecord {
	return inGroup(records, cluster, ClusterKey)
}

// InRegion returns the records whose region key equals region.
func InRegion(records []IncidentRecord, region string) []IncidentRecord {
	return inGroup(records, region, RegionKey)
}

func inGroup(records []IncidentRecord, group string, key KeyFunc) []IncidentRecord {
	out := make([]IncidentRecord, 0)
	for _, r := range records {
		if key(r) == group {
			out = append(out, r)
		}
	}
	return out
}

// typeSentinels are placeholder values the exporter writes for missing cells.
var typeSentinels = map[string]struct{}{
	"":    {},
	"N/A": {},
	"nan": {},
}

// ExtractTypeOptions returns the distinct selectable types, sorted, without
// the empty string and the "N/A" and "nan" placeholders.
func ExtractTypeOptions(records []IncidentRecord) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		if _, skip := typeSentinels[r.Type]; skip {
			continue
		}
		seen[r.Type] = struct{}{}
	}
	return SortedKeys(seen)
}

// SortedKeys returns the keys of m in lexicographic order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
