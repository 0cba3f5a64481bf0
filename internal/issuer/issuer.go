package issuer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/finsight/statement-ledger/internal/models"
)

// ErrUnrecognizedIssuer means no profile's header keywords matched the
// document prefix. Fatal for the document: without an issuer there is no
// redaction rule set or extraction strategy to run.
var ErrUnrecognizedIssuer = errors.New("unrecognized statement issuer")

// headerWindow is how much of the document start is scanned for issuer
// keywords. Letterhead identifiers always appear near the top of page one;
// a small window keeps merchant names later in the body from colliding
// with issuer keywords.
const headerWindow = 500

// Profile pairs an issuer tag with the literal keywords unique to that
// issuer's letterhead. Detection is a plain substring scan: no fuzzy
// matching, no scoring. Profiles are tried in the order listed and the
// first match wins, so keywords must be mutually exclusive on real
// statements.
type Profile struct {
	Tag      models.IssuerTag
	Name     string
	Keywords []string
}

// profiles is the closed set of supported issuers, in priority order.
var profiles = []Profile{
	{
		Tag:      models.IssuerCIBC,
		Name:     "CIBC",
		Keywords: []string{"CIBC", "Canadian Imperial Bank"},
	},
	{
		Tag:      models.IssuerRBC,
		Name:     "RBC",
		Keywords: []string{"RBC", "Royal Bank"},
	},
}

// Detect classifies which institution issued the statement by scanning the
// first headerWindow characters for each profile's keywords.
func Detect(text string) (models.IssuerTag, error) {
	window := text
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}

	for _, p := range profiles {
		if containsAny(window, p.Keywords) {
			return p.Tag, nil
		}
	}

	return "", fmt.Errorf("%w: no header keywords matched in first %d characters", ErrUnrecognizedIssuer, headerWindow)
}

// ProfileFor returns the profile for a tag, or an error for tags outside
// the closed set.
func ProfileFor(tag models.IssuerTag) (Profile, error) {
	for _, p := range profiles {
		if p.Tag == tag {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("unsupported issuer: %q", tag)
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
