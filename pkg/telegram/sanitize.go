package telegram

import (
	"regexp"
	"strings"
)

// The Bot API accepts only a small tag subset in HTML parse mode. Everything
// else must be removed before sending or the whole message is rejected.
var allowedTags = map[string]bool{
	"b":    true,
	"i":    true,
	"u":    true,
	"s":    true,
	"code": true,
	"pre":  true,
	"a":    true,
	"span": true, // spoiler variant only, see below
}

var (
	tagRe     = regexp.MustCompile(`(?s)<\s*(/?)\s*([a-zA-Z0-9]+)([^>]*?)/?\s*>`)
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	brRe      = regexp.MustCompile(`(?i)<\s*br\s*/?\s*>`)
	hrefRe    = regexp.MustCompile(`(?i)href\s*=\s*("([^"]*)"|'([^']*)')`)
	spoilerRe = regexp.MustCompile(`(?i)class\s*=\s*("[^"]*tg-spoiler[^"]*"|'[^']*tg-spoiler[^']*')`)
)

// SanitizeHTML reduces arbitrary HTML to the Bot API tag subset
// {b,i,u,s,span(spoiler only),code,pre,a}. Disallowed tags are stripped,
// keeping their inner text; they are deliberately not escaped, so no stray
// markup ever reaches the recipient. <br> becomes a newline, attributes are
// dropped except a[href] and the spoiler span class. Closing tags whose
// opening tag was stripped are stripped too, misnested tags are reclosed in
// nesting order, and tags left open at end of input are closed, so the
// output never carries unbalanced markup the Bot API would reject.
func SanitizeHTML(s string) string {
	s = commentRe.ReplaceAllString(s, "")
	s = brRe.ReplaceAllString(s, "\n")

	var (
		out  strings.Builder
		open []string // kept open tags, innermost last
		pos  int
	)

	for _, loc := range tagRe.FindAllStringSubmatchIndex(s, -1) {
		out.WriteString(s[pos:loc[0]])
		pos = loc[1]

		closing := loc[2] != loc[3]
		name := strings.ToLower(s[loc[4]:loc[5]])
		attrs := s[loc[6]:loc[7]]

		if closing {
			// Emit only if it closes a tag we actually kept open. Misnested
			// inner tags are closed on the way out so the output stays
			// balanced.
			for i := len(open) - 1; i >= 0; i-- {
				if open[i] != name {
					continue
				}
				for j := len(open) - 1; j >= i; j-- {
					out.WriteString("</" + open[j] + ">")
				}
				open = open[:i]
				break
			}
			continue
		}

		if kept := openTag(name, attrs); kept != "" {
			open = append(open, name)
			out.WriteString(kept)
		}
	}
	out.WriteString(s[pos:])

	// Tags still open at end of input are closed, innermost first.
	for i := len(open) - 1; i >= 0; i-- {
		out.WriteString("</" + open[i] + ">")
	}

	return out.String()
}

// openTag renders an allowed opening tag, or "" when the tag (or its
// attribute variant) is not in the subset.
func openTag(name, attrs string) string {
	if !allowedTags[name] {
		return ""
	}
	switch name {
	case "a":
		// An anchor without a target is useless to the recipient.
		if href := hrefRe.FindStringSubmatch(attrs); href != nil {
			url := href[2]
			if url == "" {
				url = href[3]
			}
			return `<a href="` + url + `">`
		}
		return ""
	case "span":
		// Only the spoiler span is understood by the Bot API.
		if spoilerRe.MatchString(attrs) {
			return `<span class="tg-spoiler">`
		}
		return ""
	default:
		return "<" + name + ">"
	}
}
