package toolcontext

import (
	"crypto/md5" //nolint:gosec // content-addressing only, not a security boundary
	"encoding/hex"
	"encoding/json"
)

// Fingerprint computes the spec §3/§4.3 content-address for a tool
// invocation: md5(toolName || canonical_json(args))[:12]. encoding/json
// already sorts map keys lexicographically at every nesting level when
// marshaling a map[string]any, so a plain Marshal is the canonical form
// key order never changes identity (spec §8 property 2).
func Fingerprint(toolName string, args map[string]any) string {
	canonical, _ := json.Marshal(args)
	h := md5.Sum(append([]byte(toolName), canonical...)) //nolint:gosec
	return hex.EncodeToString(h[:])[:12]
}
