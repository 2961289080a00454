package trace

import (
	"strings"
	"unicode"
)

var mnemonics = map[string]string{
	"Encrypt":               "encrypt",
	"Decrypt":               "decrypt",
	"Encode":                "encode",
	"Decode":                "decode",
	"Add":                   "add",
	"Sub":                   "sub",
	"Mul":                   "mul_no_relin",
	"MulRelin":              "mul",
	"MulNoRelin":            "mul_no_relin",
	"Mult":                  "mul",
	"MultNoRelin":           "mul_no_relin",
	"Negate":                "negate",
	"Rotate":                "rot",
	"AtIndex":               "rot",
	"Automorphism":          "automorph",
	"Conjugate":             "conjugate",
	"Relinearize":           "relin",
	"Rescale":               "rescale",
	"ModReduce":             "mod_reduce",
	"DropLevel":             "level_reduce",
	"LevelReduce":           "level_reduce",
	"Bootstrap":             "bootstrap",
	"MakePackedPlaintext":   "make_packed_plaintext",
	"GenSecretKey":          "keygen_sk",
	"GenPublicKey":          "keygen_pk",
	"GenKeyPair":            "keygen",
	"GenRelinearizationKey": "keygen_relin",
	"GenGaloisKeys":         "keygen_galois",
}

// Mnemonic maps a traced function name onto an operation mnemonic.
// Receiver qualifiers ("Evaluator.AddNew"), an "Eval" prefix and a "New"
// suffix are stripped before the table lookup; names absent from the table
// are converted from camel case to snake case.
func Mnemonic(function string) string {

	name := function
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}

	if m, ok := mnemonics[name]; ok {
		return m
	}

	if rest, ok := strings.CutPrefix(name, "Eval"); ok && rest != "" && unicode.IsUpper(rune(rest[0])) {
		name = rest
	}

	if rest, ok := strings.CutSuffix(name, "New"); ok && rest != "" {
		name = rest
	}

	if m, ok := mnemonics[name]; ok {
		return m
	}

	return snakeCase(name)
}

// snakeCase inserts an underscore before every upper case letter but the
// first and lower cases the result: "InnerSum" becomes "inner_sum".
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
