package ir

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for derived identifiers.
// Version suffix enables future algorithm migration.
const (
	DomainAccount = "courseswap/account/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) [IDSize]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out [IDSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CourseIDFromName returns the Keccak-256 hash of the NFC-normalized course
// name. Visually identical names typed with different Unicode compositions
// map to the same course.
func CourseIDFromName(name string) CourseID {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(norm.NFC.String(name)))
	var id CourseID
	copy(id[:], h.Sum(nil))
	return id
}

// AccountIDFromHandle derives a deterministic account id from a human handle
// such as "alice" or "@alice". Handles are case-insensitive.
func AccountIDFromHandle(handle string) AccountID {
	handle = strings.ToLower(strings.TrimPrefix(norm.NFC.String(handle), "@"))
	return AccountID(hashWithDomain(DomainAccount, []byte(handle)))
}

// ResolveAccount parses s as a 64-character hex account id, or derives the
// id of a handle ("alice" or "@alice") otherwise.
func ResolveAccount(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "@" {
		return AccountID{}, fmt.Errorf("empty account")
	}
	if len(s) == 2*IDSize && !strings.HasPrefix(s, "@") {
		if id, err := ParseAccountID(s); err == nil {
			return id, nil
		}
	}
	return AccountIDFromHandle(s), nil
}

// ResolveCourse parses s as a 64-character hex course id, or hashes it as a
// course name otherwise.
func ResolveCourse(s string) (CourseID, error) {
	if strings.TrimSpace(s) == "" {
		return CourseID{}, fmt.Errorf("empty course")
	}
	if len(s) == 2*IDSize {
		if id, err := ParseCourseID(s); err == nil {
			return id, nil
		}
	}
	return CourseIDFromName(s), nil
}
