package lookup

// Status is the tagged lookup result.
type Status string

// Lookup status values.
const (
	StatusFound          Status = "found"
	StatusNotFound       Status = "not_found"
	StatusTransportError Status = "transport_error"
)

// Outcome is the result of one lookup. Callers on the harvest path only care
// whether it is Found; the other tags exist for metrics, logs and tests.
type Outcome struct {
	key      string
	status   Status
	resp     *Response
	err      error
	attempts int
}

// NewFound creates a Found outcome.
func NewFound(key string, resp *Response, attempts int) Outcome {
	return Outcome{key: key, status: StatusFound, resp: resp, attempts: attempts}
}

// NewNotFound creates a NotFound outcome. resp may be nil.
func NewNotFound(key string, resp *Response, attempts int) Outcome {
	return Outcome{key: key, status: StatusNotFound, resp: resp, attempts: attempts}
}

// NewTransportError creates a TransportError outcome.
func NewTransportError(key string, err error, attempts int) Outcome {
	return Outcome{key: key, status: StatusTransportError, err: err, attempts: attempts}
}

// Classify turns a decoded response into Found or NotFound via IsValid.
func Classify(key string, resp *Response, attempts int) Outcome {
	if IsValid(resp) {
		return NewFound(key, resp, attempts)
	}
	return NewNotFound(key, resp, attempts)
}

// Key returns the looked-up key.
func (o Outcome) Key() string { return o.key }

// Status returns the tag.
func (o Outcome) Status() Status { return o.status }

// Found reports whether the record exists.
func (o Outcome) Found() bool { return o.status == StatusFound }

// Response returns the decoded response (nil on transport error).
func (o Outcome) Response() *Response { return o.resp }

// Err returns the last transport error, if any.
func (o Outcome) Err() error { return o.err }

// Attempts returns how many requests were issued for this lookup.
func (o Outcome) Attempts() int { return o.attempts }
