package statichandler

import (
	"crypto/sha256"
	"encoding/base64"
)

// fileIDLength is the number of base64url characters kept from the SHA-256
// digest. 22 characters of base64url (132 bits) is ample to avoid
// collisions for any realistic file count per endpoint while keeping ids
// short enough to appear in a URL path segment.
const fileIDLength = 22

// ComputeFileID derives a content-addressed file id from the endpoint name,
// the uploaded filename, and the file's bytes. Two uploads of the same
// bytes under the same name to the same endpoint resolve to the same id,
// which is what makes re-uploads idempotent; changing the endpoint, name,
// or a single byte of content changes the id.
func ComputeFileID(endpointName, filename string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(endpointName))
	h.Write([]byte{0})
	h.Write([]byte(filename))
	h.Write([]byte{0})
	h.Write(content)
	sum := h.Sum(nil)
	encoded := base64.RawURLEncoding.EncodeToString(sum)
	if len(encoded) > fileIDLength {
		return encoded[:fileIDLength]
	}
	return encoded
}
