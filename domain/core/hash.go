package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 hex digits, enough to tell runs apart in logs
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// ComputeDatasetHash fingerprints the cells an estimation reads: the named
// columns of every row, in row order. Columns outside the list do not affect
// the hash, and nil, string, and other cells hash differently even when they
// print alike.
func ComputeDatasetHash(rows []map[string]interface{}, columns []string) Hash {
	h := sha256.New()
	for _, c := range columns {
		writeField(h, 'c', c)
	}
	for _, row := range rows {
		h.Write([]byte{0x1e})
		for _, c := range columns {
			switch v := row[c].(type) {
			case nil:
				writeField(h, 'n', "")
			case string:
				writeField(h, 's', v)
			default:
				writeField(h, 'v', fmt.Sprint(v))
			}
		}
	}
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

func writeField(h hash.Hash, kind byte, s string) {
	h.Write([]byte{kind})
	h.Write([]byte(s))
	h.Write([]byte{0x1f})
}
