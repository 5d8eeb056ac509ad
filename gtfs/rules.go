package gtfs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ColorRule assigns a background color to routes whose short name matches
// Pattern and whose type equals RouteType. "%" in a pattern matches an
// arbitrary run of characters; everything else is literal and
// case-sensitive.
type ColorRule struct {
	Pattern   string
	RouteType int
	Color     string
}

type compiledColorRule struct {
	re        *regexp.Regexp
	routeType int
	color     string
}

// Colorizer applies an ordered rule list, first match wins. More specific
// rules must therefore be declared before generic catch-alls.
type Colorizer struct {
	rules []compiledColorRule
}

// NewColorizer compiles each pattern once up front.
func NewColorizer(rules []ColorRule) (*Colorizer, error) {
	c := &Colorizer{rules: make([]compiledColorRule, 0, len(rules))}
	for _, rule := range rules {
		re, err := compilePattern(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("bad color rule pattern %q: %w", rule.Pattern, err)
		}
		c.rules = append(c.rules, compiledColorRule{re, rule.RouteType, rule.Color})
	}
	return c, nil
}

// Match returns the color of the first rule matching the route, or ok=false
// when no rule applies (the route is left untouched).
func (c *Colorizer) Match(shortName string, routeType int) (color string, ok bool) {
	for _, rule := range c.rules {
		if rule.routeType == routeType && rule.re.MatchString(shortName) {
			return rule.color, true
		}
	}
	return "", false
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i, part := range strings.Split(pattern, "%") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// TextColorFor derives a high-contrast text color ("000000" or "FFFFFF")
// for the given "#rrggbb" background, using the W3C relative-luminance
// threshold.
func TextColorFor(background string) (string, error) {
	c, err := colorful.Hex(background)
	if err != nil {
		return "", fmt.Errorf("bad color %q: %w", background, err)
	}
	r, g, b := c.LinearRgb()
	luminance := 0.2126*r + 0.7152*g + 0.0722*b
	if luminance > 0.179 {
		return "000000", nil
	}
	return "FFFFFF", nil
}

// RouteColors is the GZM route color table. First match wins, so the
// route- and subtype-specific rules come before the per-type catch-alls.
var RouteColors = []ColorRule{
	// Route specific colors (trams & trolleybuses)
	{"0", 0, "#56be86"},
	{"1", 0, "#7cbcc7"},
	{"2", 0, "#517f87"},
	{"3", 0, "#addabd"},
	{"4", 0, "#7cbcc7"},
	{"5", 0, "#517f87"},
	{"6", 0, "#ffd403"},
	{"7", 0, "#f16d68"},
	{"9", 0, "#f6abad"},
	{"10", 0, "#ffd403"},
	{"11", 0, "#d8c497"},
	{"13", 0, "#4e7cbf"},
	{"14", 0, "#f69548"},
	{"15", 0, "#f16d68"},
	{"16", 0, "#85bae5"},
	{"19", 0, "#56be86"},
	{"20", 0, "#f16d68"},
	{"21", 0, "#7e71b4"},
	{"22", 0, "#7e71b4"},
	{"24", 0, "#c6afd4"},
	{"26", 0, "#f69548"},
	{"27", 0, "#c6afd4"},
	{"28", 0, "#7e71b4"},
	{"30", 0, "#517f87"},
	{"34", 0, "#f69548"},
	{"36", 0, "#f69548"},
	{"38", 0, "#b66987"},
	{"40", 0, "#f16d68"},
	{"41", 0, "#85bae5"},
	{"45", 0, "#f16d68"},
	{"46", 0, "#85bae5"},
	{"A", 11, "#21bbef"},
	{"B", 11, "#ea516d"},
	{"C", 11, "#85bd41"},
	{"D", 11, "#b94f98"},
	{"E", 11, "#f39200"},
	{"F", 11, "#f29fc5"},
	{"G", 11, "#4aa0af"},
	{"H", 11, "#fdc300"},
	// Route subtype specific colors (buses)
	{"%N", 3, "#000000"},
	{"AP", 3, "#d7006e"},
	{"M%", 3, "#d7006e"},
	{"T-%", 3, "#ffd403"},
	// Generic route-type based colors
	{"%", 0, "#d7006e"},
	{"%", 3, "#fcf299"},
	{"%", 11, "#88bb44"},
}

// UpperCaseWords are abbreviations that stay fully upper-case in route long
// names after title casing.
var UpperCaseWords = []string{"GCR", "GPP", "II", "III", "NFZ", "PKP", "UG", "ZWM"}

var (
	titleCaser   = cases.Title(language.Polish)
	upperWordRes = compileUpperWords()
)

func compileUpperWords() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(UpperCaseWords))
	for i, word := range UpperCaseWords {
		res[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	}
	return res
}

// FixLongName title-cases a route long name, then restores the canonical
// casing of whole-word abbreviation matches.
func FixLongName(input string) string {
	s := titleCaser.String(input)
	for i, re := range upperWordRes {
		s = re.ReplaceAllString(s, UpperCaseWords[i])
	}
	return s
}
