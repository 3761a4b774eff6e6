package typesystem

import (
	"strings"
	"unicode"
)

// SuffixSeparator joins a function name and its specialization suffix.
const SuffixSeparator = "$"

// Suffix derives the specialization suffix of a function type from its first
// arity parameters. It depends only on t, so the code generator and every call
// site compute the same name for the same instantiation.
func Suffix(t Type, arity int) string {
	if s, ok := t.(TScheme); ok {
		t = s.Body
	}
	params, _ := SplitFunc(t, arity)
	if len(params) == 0 {
		return mangle(t)
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = mangle(p)
	}
	return strings.Join(parts, "_")
}

// SpecializedName is name$Suffix(t, arity).
func SpecializedName(name string, t Type, arity int) string {
	return name + SuffixSeparator + Suffix(t, arity)
}

func mangle(t Type) string {
	switch t := t.(type) {
	case TInt:
		return "Int"
	case TDouble:
		return "Double"
	case TString:
		return "String"
	case TBool:
		return "Bool"
	case TUnit:
		return "Unit"
	case TList:
		return mangle(t.Elem) + "List"
	case TResult:
		return "ResultOf" + mangle(t.Ok) + "And" + mangle(t.Err)
	case TFunc:
		return "Fn" + mangle(t.Param) + "To" + mangle(t.Result)
	case TNamed:
		return capitalize(t.Name)
	case TApp:
		if len(t.Args) == 0 {
			return capitalize(t.Name)
		}
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = mangle(a)
		}
		return capitalize(t.Name) + "Of" + strings.Join(parts, "And")
	case THost:
		return "Host" + sanitize(t.Name)
	case TScheme:
		return mangle(t.Body)
	}
	return "Generic"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return sanitize(string(r))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, capitalizeParts(s))
}

// capitalizeParts upper-cases the letter after each separator so that
// "strings.Builder" becomes "StringsBuilder".
func capitalizeParts(s string) string {
	var sb strings.Builder
	upper := true
	for _, r := range s {
		if r == '.' || r == '/' || r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
