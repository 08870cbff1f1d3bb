// Package ids assigns the stable identifiers that name rules and rule targets.
//
// Identifiers are content-derived: the compiler, the interpreter and the
// catalog each recompute them from configuration alone, possibly in different
// processes, and must agree byte for byte. Nothing here holds state.
package ids

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

const (
	// Prefix starts every rule and target identifier.
	Prefix = "exp_"

	ruleHexLen   = 6
	targetHexLen = 4

	// Separator joins hash inputs and multi-column discriminators.
	Separator = "|"
)

var (
	rulePattern   = regexp.MustCompile(`^exp_[0-9a-f]{6}$`)
	targetPattern = regexp.MustCompile(`^exp_[0-9a-f]{6}_[0-9a-f]{4}$`)
)

// hexPrefix returns the first n hex characters of md5(parts joined by "|").
// md5 is part of the identifier contract: ids stored by earlier runs must
// keep resolving.
func hexPrefix(n int, parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, Separator)))
	return hex.EncodeToString(sum[:])[:n]
}

// RuleID returns the base identifier of a rule.
// It depends only on the suite name and the rule kind, never on rule position
// or parameters.
func RuleID(suiteName, kind string) string {
	return Prefix + hexPrefix(ruleHexLen, suiteName, kind)
}

// TargetID returns the scoped identifier of one rule target.
func TargetID(ruleID, discriminator string) string {
	return ruleID + "_" + hexPrefix(targetHexLen, ruleID, discriminator)
}

// Pair is the discriminator of a two-column target ("a|b").
// Order is significant: (a, b) and (b, a) are different targets.
func Pair(a, b string) string {
	return a + Separator + b
}

// Compound is the discriminator of a multi-column target. Columns are sorted
// so the id does not depend on declaration order.
func Compound(columns []string) string {
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)
	return strings.Join(sorted, Separator)
}

// IsRuleID reports whether s has the base identifier shape exp_xxxxxx.
func IsRuleID(s string) bool {
	return rulePattern.MatchString(s)
}

// IsTargetID reports whether s has the scoped identifier shape exp_xxxxxx_yyyy.
func IsTargetID(s string) bool {
	return targetPattern.MatchString(s)
}

// BaseOf returns the rule id a scoped id belongs to, or s unchanged when s is
// not a scoped id.
func BaseOf(s string) string {
	if !IsTargetID(s) {
		return s
	}
	return s[:len(Prefix)+ruleHexLen]
}
