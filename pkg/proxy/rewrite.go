package proxy

import "encoding/json"

// rewriteModelField re-serializes a parsed JSON body with its "model" field
// replaced by effectiveModel, for the alias case where the caller's model
// name differs from what the candidate provider expects. All other fields
// are preserved; map key order in the re-serialized output is whatever
// encoding/json produces for map[string]any (alphabetical), which is stable
// across calls even though it isn't guaranteed to match the caller's
// original key order byte-for-byte.
func rewriteModelField(parsed map[string]any, effectiveModel string) ([]byte, error) {
	rewritten := make(map[string]any, len(parsed))
	for k, v := range parsed {
		rewritten[k] = v
	}
	rewritten["model"] = effectiveModel
	return json.Marshal(rewritten)
}
