package trace

import (
	"fmt"
)

// IdentityPolicy selects how identities propagate through operations
// that mutate an object in place.
type IdentityPolicy int

const (
	// ContentHash names objects by content only: an object mutated
	// in place is given a new symbol.
	ContentHash = IdentityPolicy(iota)
	// MetadataTag names objects implementing [Tagger] by the symbol they
	// carry: an object mutated in place keeps its symbol. Untagged objects
	// are named by content and tagged with the resulting symbol.
	MetadataTag
)

func (p IdentityPolicy) String() string {
	switch p {
	case ContentHash:
		return "content"
	case MetadataTag:
		return "metadata"
	default:
		return fmt.Sprintf("IdentityPolicy(%d)", int(p))
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (p IdentityPolicy) MarshalText() (text []byte, err error) {
	switch p {
	case ContentHash, MetadataTag:
		return []byte(p.String()), nil
	default:
		return nil, fmt.Errorf("invalid identity policy %d", int(p))
	}
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (p *IdentityPolicy) UnmarshalText(text []byte) (err error) {
	switch string(text) {
	case "", "content":
		*p = ContentHash
	case "metadata":
		*p = MetadataTag
	default:
		return fmt.Errorf("invalid identity policy %q, must be one of content, metadata", text)
	}
	return
}
