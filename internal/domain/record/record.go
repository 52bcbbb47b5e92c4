package record

import "github.com/kailas-cloud/examharvest/internal/domain/lookup"

// Sentinel fills every expected field that the source record does not carry.
const Sentinel = "X"

// Subjects is the closed set of expected field keys, in export column order.
var Subjects = []string{
	"Toan",
	"Ly",
	"Hoa",
	"Sinh",
	"Van",
	"Su",
	"Dia",
	"NgoaiNgu",
	"GDCD",
}

// Score is one field value: a numeric point or the sentinel.
type Score struct {
	point   float64
	present bool
}

// Point creates a present score.
func Point(p float64) Score { return Score{point: p, present: true} }

// Missing creates a sentinel score.
func Missing() Score { return Score{} }

// Value returns the point and whether it is present.
func (s Score) Value() (float64, bool) { return s.point, s.present }

// IsMissing reports whether the score is the sentinel.
func (s Score) IsMissing() bool { return !s.present }

// String renders the point or the sentinel.
func (s Score) String() string {
	if !s.present {
		return Sentinel
	}
	return lookup.FormatPoint(s.point)
}

// Record is one harvested row. Fields always holds every key of Subjects.
type Record struct {
	id          string
	displayName string
	suffix      int
	fields      map[string]Score
}

// Reconstruct creates a Record without extraction (checkpoint hydration).
// Missing subject keys are filled with the sentinel.
func Reconstruct(id, displayName string, suffix int, fields map[string]Score) Record {
	out := make(map[string]Score, len(Subjects))
	for _, k := range Subjects {
		out[k] = fields[k]
	}
	return Record{id: id, displayName: displayName, suffix: suffix, fields: out}
}

// ID returns the candidate number reported by the upstream.
func (r *Record) ID() string { return r.id }

// DisplayName returns the candidate name.
func (r *Record) DisplayName() string { return r.displayName }

// Suffix returns the suffix the lookup was issued for.
func (r *Record) Suffix() int { return r.suffix }

// Fields returns the subject scores keyed by subject.
func (r *Record) Fields() map[string]Score { return r.fields }

// Field returns one subject score (the sentinel for unknown keys).
func (r *Record) Field(key string) Score { return r.fields[key] }
