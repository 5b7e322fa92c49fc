package resolver_cache

import (
	"github.com/pmkol/rrcache-x/pkg/rrset_cache"
)

type Section uint8

const (
	SectionAnswer Section = iota
	SectionAuthority
	SectionAdditional
)

// SectionTrust ranks data found in a section of a response.
func SectionTrust(s Section, authoritative bool) rrset_cache.TrustLevel {
	switch s {
	case SectionAnswer:
		if authoritative {
			return rrset_cache.TrustAnswerAA
		}
		return rrset_cache.TrustAnswerNonAA
	case SectionAuthority:
		if authoritative {
			return rrset_cache.TrustAuthorityAA
		}
		return rrset_cache.TrustAuthorityNonAA
	case SectionAdditional:
		if authoritative {
			return rrset_cache.TrustAdditionalAA
		}
		return rrset_cache.TrustAdditionalNonAA
	default:
		return rrset_cache.TrustDefault
	}
}
