package check

import (
	"context"
	"regexp"

	"github.com/optimode/mailprobe/internal/parse"
	"github.com/optimode/mailprobe/types"
)

// RFC 2822 grammar fragments, assembled bottom-up into a single
// anchored addr-spec pattern. Folding whitespace, comments, quoted
// strings and domain literals are all legal address syntax, so the
// pattern is considerably more permissive than the everyday
// user@host.tld shape.
const (
	wsp           = `[\s]`
	crlf          = `(?:\r\n)`
	noWSCtl       = `\x01-\x08\x0b\x0c\x0f-\x1f\x7f`
	quotedPair    = `(?:\\.)`
	fws           = `(?:(?:` + wsp + `*` + crlf + `)?` + wsp + `+)`
	ctext         = `[` + noWSCtl + `\x21-\x27\x2a-\x5b\x5d-\x7e]`
	ccontent      = `(?:` + ctext + `|` + quotedPair + `)`
	comment       = `\((?:` + fws + `?` + ccontent + `)*` + fws + `?\)`
	cfws          = `(?:` + fws + `?` + comment + `)*(?:` + fws + `?` + comment + `|` + fws + `)`
	atext         = "[\\w!#$%&'\\*\\+\\-/=\\?\\^`\\{\\|\\}~]"
	dotAtomText   = atext + `+(?:\.` + atext + `+)*`
	dotAtom       = cfws + `?` + dotAtomText + cfws + `?`
	qtext         = `[` + noWSCtl + `\x21\x23-\x5b\x5d-\x7e]`
	qcontent      = `(?:` + qtext + `|` + quotedPair + `)`
	quotedString  = cfws + `?"(?:` + fws + `?` + qcontent + `)*` + fws + `?"` + cfws + `?`
	localPart     = `(?:` + dotAtom + `|` + quotedString + `)`
	dtext         = `[` + noWSCtl + `\x21-\x5a\x5e-\x7e]`
	dcontent      = `(?:` + dtext + `|` + quotedPair + `)`
	domainLiteral = cfws + `?\[(?:` + fws + `?` + dcontent + `)*` + fws + `?\]` + cfws + `?`
	domainName    = `(?:` + dotAtom + `|` + domainLiteral + `)`
	addrSpec      = localPart + `@` + domainName
)

// addrSpecRE accepts exactly the addr-spec production, anchored to the
// whole input. \z (not $) so a stray trailing newline cannot sneak an
// otherwise valid address through.
var addrSpecRE = regexp.MustCompile(`\A` + addrSpec + `\z`)

// SyntaxChecker validates addresses against the RFC 2822 addr-spec
// grammar. The local part is matched as given; the domain is matched
// in its ASCII/Punycode form, so internationalized domains pass once
// they survive IDNA conversion.
type SyntaxChecker struct{}

func NewSyntaxChecker() *SyntaxChecker {
	return &SyntaxChecker{}
}

func (c *SyntaxChecker) Check(_ context.Context, email parse.Email) (types.CheckResult, error) {
	stage := types.StageSyntax

	if email.Raw == "" {
		return types.CheckResult{Stage: stage, Outcome: types.Invalid, Details: "empty email address"}, nil
	}
	if !email.Valid {
		return types.CheckResult{Stage: stage, Outcome: types.Invalid, Details: "missing local part or domain"}, nil
	}
	if !addrSpecRE.MatchString(email.Local + "@" + email.Domain) {
		return types.CheckResult{Stage: stage, Outcome: types.Invalid, Details: "not a valid addr-spec"}, nil
	}
	return types.CheckResult{Stage: stage, Outcome: types.Valid, Details: "syntax ok"}, nil
}
