package evalctx

import (
	"sort"

	"github.com/cespare/xxhash/v2"
)

// VariablesDigest hashes every variable bound on this Context's chain into a
// single value, used to key attribute subscriptions that are sensitive to
// the evaluation environment they were requested from (§3
// AttributeSubscriptionKey.VariablesDigest). A child binding shadows a
// parent binding of the same name, matching Lookup's resolution order.
func (c *Context) VariablesDigest() uint64 {
	seen := map[string]bool{}
	names := make([]string, 0, 8)
	for n := c; n != nil; n = n.parent {
		for name := range n.bindings {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	h := xxhash.New()
	for _, name := range names {
		_, _ = h.WriteString(name)
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(c.Lookup(name).Display())
		_, _ = h.WriteString("\x1f")
	}
	return h.Sum64()
}
