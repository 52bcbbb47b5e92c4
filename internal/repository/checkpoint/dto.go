package checkpoint

import (
	"github.com/kailas-cloud/examharvest/internal/domain/record"
	"github.com/kailas-cloud/examharvest/internal/domain/segment"
)

// segmentRow is the JSON representation of a discovered segment.
type segmentRow struct {
	Prefix int    `json:"prefix"`
	Label  string `json:"label"`
}

// recordRow is the JSON representation of a record. A nil score is the sentinel.
type recordRow struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Suffix int                 `json:"suffix"`
	Scores map[string]*float64 `json:"scores"`
}

// resultRow is the JSON representation of a harvested segment.
type resultRow struct {
	Segment segmentRow  `json:"segment"`
	Bound   int         `json:"bound"`
	Records []recordRow `json:"records"`
}

func segmentToRow(s segment.Segment) segmentRow {
	return segmentRow{Prefix: s.PrefixID(), Label: s.Label()}
}

func segmentFromRow(r segmentRow) segment.Segment {
	return segment.New(r.Prefix, r.Label)
}

func recordToRow(r *record.Record) recordRow {
	scores := make(map[string]*float64, len(record.Subjects))
	for _, k := range record.Subjects {
		if p, ok := r.Field(k).Value(); ok {
			scores[k] = &p
		} else {
			scores[k] = nil
		}
	}
	return recordRow{ID: r.ID(), Name: r.DisplayName(), Suffix: r.Suffix(), Scores: scores}
}

func recordFromRow(r recordRow) record.Record {
	fields := make(map[string]record.Score, len(record.Subjects))
	for _, k := range record.Subjects {
		if p := r.Scores[k]; p != nil {
			fields[k] = record.Point(*p)
		}
	}
	return record.Reconstruct(r.ID, r.Name, r.Suffix, fields)
}

func resultToRow(res *segment.Result) resultRow {
	rows := make([]recordRow, len(res.Records))
	for i := range res.Records {
		rows[i] = recordToRow(&res.Records[i])
	}
	return resultRow{Segment: segmentToRow(res.Segment), Bound: res.Bound, Records: rows}
}

func resultFromRow(r resultRow) segment.Result {
	recs := make([]record.Record, len(r.Records))
	for i, row := range r.Records {
		recs[i] = recordFromRow(row)
	}
	return segment.Result{Segment: segmentFromRow(r.Segment), Bound: r.Bound, Records: recs}
}
