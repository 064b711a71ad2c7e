package val

import "time"

// Trace records the provenance of a Val for the trace sink interface
// mentioned in §7: where the value came from, and when it was produced.
// Implementations of the trace sink (see internal/otelsink) attach these to
// spans; the core itself never inspects Trace contents.
type Trace struct {
	Source    string
	Produced  time.Time
	Attribute string
	Policy    string
}
