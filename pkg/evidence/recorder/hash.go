package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// MaxHashSize caps the number of bytes hashed from a document.
const MaxHashSize = 16 * 1024 * 1024

// HashContent returns the hex SHA-256 of content, or "" for empty content.
// Content beyond MaxHashSize is not hashed.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	if len(content) > MaxHashSize {
		content = content[:MaxHashSize]
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashJSON hashes the JSON encoding of v. Map keys are sorted by the
// encoder, so equal documents hash equally.
func HashJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return HashContent(data), nil
}
