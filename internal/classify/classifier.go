// Package classify assigns theme tags to instruments from their business
// description, constrained by GICS sector and sub-industry.
package classify

import (
	"regexp"
	"strings"

	"equity-monitor/internal/domain"
)

type compiledRule struct {
	theme    string
	sectors  map[string]struct{}
	keywords []*regexp.Regexp
}

// Classifier matches descriptions against theme rules.
// A Classifier is immutable after New and safe for concurrent use.
type Classifier struct {
	rules []compiledRule
}

// New compiles the built-in theme rules.
func New() *Classifier {
	c := &Classifier{rules: make([]compiledRule, 0, len(defaultRules))}
	for _, r := range defaultRules {
		cr := compiledRule{
			theme:   r.theme,
			sectors: make(map[string]struct{}, len(r.sectors)),
		}
		for _, s := range r.sectors {
			cr.sectors[s] = struct{}{}
		}
		for _, k := range r.keywords {
			cr.keywords = append(cr.keywords, regexp.MustCompile(k))
		}
		c.rules = append(c.rules, cr)
	}
	return c
}

// Themes lists the theme names in evaluation order.
func (c *Classifier) Themes() []string {
	out := make([]string, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.theme
	}
	return out
}

// Classify returns the themes whose sector guardrail admits sector or
// subIndustry and whose keywords appear in description. When nothing
// matches, the sub-industry itself is used as the only tag. An empty
// description yields no tags.
func (c *Classifier) Classify(description, sector, subIndustry string) domain.Tags {
	if strings.TrimSpace(description) == "" {
		return nil
	}
	text := strings.ToLower(description)

	var tags domain.Tags
	for _, r := range c.rules {
		if !r.admits(sector, subIndustry) {
			continue
		}
		for _, re := range r.keywords {
			if re.MatchString(text) {
				tags = append(tags, r.theme)
				break
			}
		}
	}

	if len(tags) == 0 {
		sub := strings.TrimSpace(subIndustry)
		if sub == "" || strings.EqualFold(sub, "nan") {
			return nil
		}
		return domain.Tags{sub}
	}
	return tags
}

func (r compiledRule) admits(sector, subIndustry string) bool {
	if len(r.sectors) == 0 {
		return true
	}
	if _, ok := r.sectors[sector]; ok {
		return true
	}
	_, ok := r.sectors[subIndustry]
	return ok
}
