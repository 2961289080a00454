package trace

// Kind enumerates the cryptographic object kinds a trace distinguishes.
type Kind int

const (
	KindElement = Kind(iota)
	KindCiphertext
	KindPlaintext
	KindPublicKey
	KindPrivateKey
	KindEvalKey
	KindEvalKeyMap
)

var kindTags = [...]string{
	KindElement:    "element",
	KindCiphertext: "ciphertext",
	KindPlaintext:  "plaintext",
	KindPublicKey:  "public_key",
	KindPrivateKey: "private_key",
	KindEvalKey:    "eval_key",
	KindEvalKeyMap: "eval_key_map",
}

var kindPrefixes = [...]string{
	KindElement:    "obj",
	KindCiphertext: "ct",
	KindPlaintext:  "pt",
	KindPublicKey:  "pk",
	KindPrivateKey: "sk",
	KindEvalKey:    "evk",
	KindEvalKeyMap: "evkmap",
}

var kindIRTypes = [...]string{
	KindElement:    "!openfhe.obj",
	KindCiphertext: "!lwe.ct",
	KindPlaintext:  "!lwe.pt",
	KindPublicKey:  "!openfhe.pk",
	KindPrivateKey: "!openfhe.sk",
	KindEvalKey:    "!openfhe.evk",
	KindEvalKeyMap: "!openfhe.evkmap",
}

func (k Kind) valid() bool {
	return k >= KindElement && k <= KindEvalKeyMap
}

// String returns the type tag of the kind, e.g. "ciphertext".
func (k Kind) String() string {
	if !k.valid() {
		return kindTags[KindElement]
	}
	return kindTags[k]
}

// Prefix returns the short prefix used for IR register names, e.g. "ct".
func (k Kind) Prefix() string {
	if !k.valid() {
		return kindPrefixes[KindElement]
	}
	return kindPrefixes[k]
}

// IRType returns the IR type of the kind, e.g. "!lwe.ct".
func (k Kind) IRType() string {
	if !k.valid() {
		return kindIRTypes[KindElement]
	}
	return kindIRTypes[k]
}

// KindOf returns the [Kind] whose type tag is tag.
func KindOf(tag string) (Kind, bool) {
	for i := range kindTags {
		if kindTags[i] == tag {
			return Kind(i), true
		}
	}
	return KindElement, false
}
