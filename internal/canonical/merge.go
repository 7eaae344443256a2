package canonical

import (
	"strings"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// MergeByKey collapses rows that share the natural key and differ only in
// column. The surviving row is the first one seen; its column becomes the
// de-duplicated union of every merged row's values, in first-seen order.
// Array-valued columns stay arrays, anything else becomes a comma-joined
// string. Rows without a key pass through untouched.
func MergeByKey(records []domain.RawRecord, key, column string) []domain.RawRecord {
	type group struct {
		index   int
		values  []string
		seen    map[string]bool
		isArray bool
	}

	out := make([]domain.RawRecord, 0, len(records))
	groups := make(map[string]*group)

	for _, rec := range records {
		k := rec.Text(key)
		if k == "" {
			out = append(out, rec)
			continue
		}

		g, ok := groups[k]
		if !ok {
			fields := make(map[string]any, len(rec.Fields))
			for name, v := range rec.Fields {
				fields[name] = v
			}
			_, isArray := rec.Fields[column].([]any)
			g = &group{index: len(out), seen: make(map[string]bool), isArray: isArray}
			groups[k] = g
			out = append(out, domain.RawRecord{Kind: rec.Kind, Fields: fields})
		}

		for _, v := range stringList(rec.Fields[column]) {
			if g.seen[v] {
				continue
			}
			g.seen[v] = true
			g.values = append(g.values, v)
		}
	}

	for _, g := range groups {
		if len(g.values) == 0 {
			continue
		}
		fields := out[g.index].Fields
		if g.isArray {
			merged := make([]any, len(g.values))
			for i, v := range g.values {
				merged[i] = v
			}
			fields[column] = merged
		} else {
			fields[column] = strings.Join(g.values, ", ")
		}
	}

	return out
}
