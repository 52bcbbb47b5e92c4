package record

import "github.com/kailas-cloud/examharvest/internal/domain/lookup"

// Extract maps a candidate payload into a Record. suffix is the issued suffix.
// An absent subject key, an absent nested score object or a null point all map
// to the sentinel, so every Record has the same shape.
func Extract(suffix int, c *lookup.Candidate) Record {
	rec := Record{suffix: suffix, fields: make(map[string]Score, len(Subjects))}
	if c != nil {
		rec.id = string(c.ID)
		rec.displayName = c.DisplayName
	}
	for _, k := range Subjects {
		rec.fields[k] = scoreOf(c, k)
	}
	return rec
}

func scoreOf(c *lookup.Candidate, key string) Score {
	if c == nil || c.SubjectScores == nil {
		return Missing()
	}
	s, ok := c.SubjectScores[key]
	if !ok || s == nil || s.Point == nil {
		return Missing()
	}
	return Point(*s.Point)
}
