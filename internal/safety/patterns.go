package safety

import "regexp"

const (
	SignalHarmToOthers     = "harm_to_others"
	SignalExplicitSelfHarm = "explicit_self_harm"
	SignalVeiledSelfHarm   = "veiled_self_harm"
)

// Pattern is one recognizer. Patterns are evaluated in slice order and the
// first match wins, so harm to others must come before any self-harm rule.
type Pattern struct {
	Signal   string
	Category Category
	Expr     *regexp.Regexp
}

func group(signal string, category Category, exprs ...string) []Pattern {
	out := make([]Pattern, len(exprs))
	for i, e := range exprs {
		out[i] = Pattern{Signal: signal, Category: category, Expr: regexp.MustCompile(e)}
	}
	return out
}

// People a threat can name by relation. Possessive targets are limited to
// these so "attack the premise" or "kill my grade" stay academic.
const (
	relations = `(roommates?|professors?|teachers?|instructors?|tas?|classmates?|mom|mother|dad|father|parents?|` +
		`brothers?|sisters?|wife|husband|girlfriend|boyfriend|partner|ex|boss|coworkers?|neighbou?rs?|friends?|` +
		`family|kids?|children|son|daughter|advisor|supervisor|landlord|cousin|uncle|aunt)`
	relationTarget = `(my|his|her|their|our|your|that|this|the)\s+` + relations
	personTarget   = `(him|her|them|someone|somebody|people|everyone|everybody|all\s+of\s+(them|you)|` + relationTarget + `)`

	// First-person intent, after normalization ("i'll", "i'm going to").
	firstPersonIntent = `\bi('ll|\s+will|'m\s+(going\s+to|gonna)|\s+am\s+(going\s+to|gonna)|\s+want\s+to|\s+wanna|'d\s+like\s+to)\s+(just\s+|really\s+|literally\s+)?`
)

var defaultPatterns = concat(
	group(SignalHarmToOthers, CategoryOthers,
		`\b(kill|murder|shoot|stab|strangle)\s+`+personTarget+`\b`,
		`\battack\s+(him|someone|somebody|people|everyone|everybody|`+relationTarget+`)\b`,
		firstPersonIntent+`(kill|murder|shoot|stab|strangle|hurt|beat\s+up)\s+(you|`+personTarget+`)\b`,
		`\bbring(ing)?\s+(a|my)\s+(gun|knife|weapon|rifle)\s+to\b`,
		`\bmake\s+(them|him|her|everyone|everybody|you)\s+(all\s+)?pay\b`,
		`\bshoot\s+up\s+(the|my|a|this|that)\b`,
	),
	group(SignalExplicitSelfHarm, CategorySelf,
		`\b(kill(ing)?|hurt(ing)?|harm(ing)?|cut(ting)?|hang(ing)?|shoot(ing)?|stab(bing)?|drown(ing)?|poison(ing)?|burn(ing)?|starv(e|ing)|strangl(e|ing)|suffocat(e|ing))\s+myself\b`,
		`\b(slit(ting)?|cut(ting)?|slash(ing)?)\s+my\s+(wrists?|throat)\b`,
		`\bjump(ing)?\s+(off|from|in\s+front\s+of)\s+(a|the|my|this|that)\s+(bridge|building|roof|rooftop|cliff|balcony|ledge|overpass|window|train|bus|car|truck)\b`,
		`\b(step(ping)?|walk(ing)?)\s+in\s+front\s+of\s+(a|the)\s+(train|bus|car|truck)\b`,
		`\bput\s+a\s+(gun|bullet)\s+(to|in)\s+my\s+head\b`,
		`\b(want(ed)?\s+to|wanna|going\s+to|planning\s+to|ready\s+to)\s+die\b`,
		`\bsuicid(e|al)\b`,
		`\bend\s+(my\s+(own\s+)?life|it\s+all)\b`,
		`\bcan('?t|not)?\s+go\s+on\s+(anymore|any\s+longer|like\s+this|living)\b`,
		`\boverdos(e|ed|ing)\b`,
		`\btake\s+all\s+(of\s+)?my\s+(pills|meds|medication)\b`,
		`\bgoodbye\s+forever\b`,
		`\bno\s+reason\s+to\s+(live|go\s+on|keep\s+going)\b`,
		`\bbetter\s+off\s+dead\b`,
		`\bself[-\s]?harm(ing)?\b`,
		`\bdon'?t\s+want\s+to\s+(live|be\s+alive)\b`,
	),
	group(SignalVeiledSelfHarm, CategorySelf,
		`\bwon'?t\s+be\s+(a\s+)?(problem|burden|around|here)\s+(for\s+)?(much\s+)?(longer|anymore)\b`,
		`\bgiving\s+away\s+(all\s+)?(of\s+)?my\b`,
		`\bmade\s+(up\s+)?my\s+(mind|decision)\s+about\s+(everything|it\s+all)\b`,
		`\bbetter\s+off\s+without\s+me\b`,
		`\bit('?ll|\s+will)\s+all\s+be\s+over\s+soon\b`,
		`\bnot\s+going\s+to\s+be\s+(here|around)\s+(much|for\s+much)\s+longer\b`,
		`\btired\s+of\s+(living|being\s+alive)\b`,
		`\bwish\s+i\s+(could\s+disappear|wasn'?t\s+here|was\s+dead|were\s+dead|had\s+never\s+been\s+born)\b`,
		`\bno\s+point\s+in\s+(living|going\s+on)\b`,
	),
)

func concat(groups ...[]Pattern) []Pattern {
	var out []Pattern
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// DefaultPatterns returns a copy of the built-in recognizers.
func DefaultPatterns() []Pattern {
	out := make([]Pattern, len(defaultPatterns))
	copy(out, defaultPatterns)
	return out
}
