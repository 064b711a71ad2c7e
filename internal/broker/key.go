package broker

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/sapl-go/sapl/internal/registry"
	"github.com/sapl-go/sapl/internal/val"
)

// keyDigest hashes an AttributeKey's structural content with xxhash the same
// way internal/combining.digest hashes decision payloads, so two keys with
// equal fields collapse to the same broker entry regardless of slice/pointer
// identity.
func keyDigest(key registry.AttributeKey) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(key.FQName)
	if key.Entity != nil {
		raw, _ := json.Marshal(*key.Entity)
		_, _ = h.Write(raw)
	}
	for _, a := range key.Arguments {
		raw, _ := json.Marshal(a)
		_, _ = h.Write(raw)
	}
	_, _ = fmt.Fprintf(h, "|%d", key.VariablesDigest)
	return h.Sum64()
}

// entityDigest hashes just fqName+entity, ignoring Arguments/VariablesDigest,
// used to locate the entries a PublishAttribute/RemoveAttribute call should
// feed: a statically published attribute is identified by name and entity
// alone, so it can reach subscribers that bound different variables or
// passed no arguments.
func entityDigest(fqName string, entity *val.Val) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(fqName)
	if entity != nil {
		raw, _ := json.Marshal(*entity)
		_, _ = h.Write(raw)
	}
	return h.Sum64()
}
