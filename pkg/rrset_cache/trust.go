package rrset_cache

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownTrustLevel = errors.New("unknown trust level")

// TrustLevel ranks how authoritative the source of an RRset is, after
// RFC 2181 section 5.4.1. A greater value is more trustworthy.
type TrustLevel uint8

const (
	TrustDefault TrustLevel = iota
	TrustAdditionalNonAA
	TrustAuthorityNonAA
	TrustAdditionalAA
	TrustNonAuthAnswerAA
	TrustAnswerNonAA
	TrustPrimGlue
	TrustAuthorityAA
	TrustAnswerAA
	TrustPrimZoneNonGlue

	numTrustLevels
)

var trustLevelNames = [numTrustLevels]string{
	TrustDefault:         "default",
	TrustAdditionalNonAA: "additional_nonaa",
	TrustAuthorityNonAA:  "authority_nonaa",
	TrustAdditionalAA:    "additional_aa",
	TrustNonAuthAnswerAA: "nonauth_answer_aa",
	TrustAnswerNonAA:     "answer_nonaa",
	TrustPrimGlue:        "prim_glue",
	TrustAuthorityAA:     "authority_aa",
	TrustAnswerAA:        "answer_aa",
	TrustPrimZoneNonGlue: "prim_zone_nonglue",
}

func (l TrustLevel) Valid() bool {
	return l < numTrustLevels
}

func (l TrustLevel) String() string {
	if l.Valid() {
		return trustLevelNames[l]
	}
	return fmt.Sprintf("trust(%d)", uint8(l))
}

// MoreTrustedThan reports whether l strictly outranks o.
func (l TrustLevel) MoreTrustedThan(o TrustLevel) bool {
	return l > o
}

func ParseTrustLevel(s string) (TrustLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range trustLevelNames {
		if n == s {
			return TrustLevel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTrustLevel, s)
}
