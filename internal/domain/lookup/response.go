// Package lookup holds the decoded shape of a single-key lookup response and the
// rule that decides whether a response describes an existing record.
package lookup

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Response is the decoded upstream body:
//
//	{ "data": { "model": ..., "data": { "id", "displayName", "provinceName", "subjectScores" } } }
type Response struct {
	Data *Envelope `json:"data"`
}

// Envelope is the business wrapper around a candidate.
type Envelope struct {
	// Model is kept raw: the upstream sends true, false, null or omits it.
	Model     json.RawMessage `json:"model"`
	Candidate *Candidate      `json:"data"`
}

// Candidate is the record payload.
type Candidate struct {
	ID            FlexString        `json:"id"`
	DisplayName   string            `json:"displayName"`
	ProvinceName  string            `json:"provinceName"`
	SubjectScores map[string]*Score `json:"subjectScores"`
}

// Score is one nested subject score object.
type Score struct {
	Point *float64 `json:"point"`
}

// FlexString accepts both JSON strings and JSON numbers.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err //nolint:wrapcheck // json error already carries position
		}
		*s = FlexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err //nolint:wrapcheck // json error already carries position
	}
	*s = FlexString(n.String())
	return nil
}

// Decode parses a body regardless of the Content-Type the transport reported.
func Decode(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(bytes.TrimPrefix(body, utf8BOM), &resp); err != nil {
		return nil, err //nolint:wrapcheck // caller wraps with key context
	}
	return &resp, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CandidateOf returns the candidate payload or nil.
func CandidateOf(resp *Response) *Candidate {
	if resp == nil || resp.Data == nil {
		return nil
	}
	return resp.Data.Candidate
}

// FormatPoint renders a point without trailing zeros ("7.8", "10").
func FormatPoint(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
