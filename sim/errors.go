package sim

import "errors"

// ErrBadParameters marks configuration rejected at setup. Validation
// wraps it with the offending key and value; nothing downstream of
// NewSimulator returns it.
var ErrBadParameters = errors.New("sim: bad parameters")
