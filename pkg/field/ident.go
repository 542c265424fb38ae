package field

import "strings"

// DeriveIdentifier turns a dotted model path into the identifier used for the
// input's id and name and the label's for: "user.email" -> "user_email".
//
// The mapping is not one-to-one. Paths that already contain "_" can collide
// with dotted ones ("a.b" and "a_b" both give "a_b"); fields bound in the same
// form should not mix the two spellings.
func DeriveIdentifier(modelPath string) string {
	return strings.ReplaceAll(strings.TrimSpace(modelPath), ".", "_")
}
