package lookup

import "bytes"

// IsValid reports whether resp describes an existing record.
//
// The upstream has no documented contract; the only signal is data.model. A
// missing response, a missing data object, or a model that is absent, null or
// false means the record does not exist. Any other model value means it does.
func IsValid(resp *Response) bool {
	if resp == nil || resp.Data == nil {
		return false
	}
	m := bytes.TrimSpace(resp.Data.Model)
	if len(m) == 0 {
		return false
	}
	return !bytes.Equal(m, []byte("null")) && !bytes.Equal(m, []byte("false"))
}
