package news

import (
	"fmt"
	"strings"
)

// fieldAliases maps extractor keys onto the canonical article field.
var fieldAliases = map[string]string{
	"source-hostname": "source_hostname",
	"sourcehostname":  "source_hostname",
	"raw-text":        "raw_text",
	"rawtext":         "raw_text",
	"image":           "images_url",
	"images":          "images_url",
}

// FromFields builds an Article from a loosely typed field map as produced by
// the content extractor. Missing keys become zero values; unknown keys are ignored.
func FromFields(fields map[string]any) Article {
	norm := make(map[string]any, len(fields))
	for k, v := range fields {
		key := strings.ToLower(strings.TrimSpace(k))
		if alias, ok := fieldAliases[key]; ok {
			norm[alias] = v
		}
	}
	// Canonical keys win over aliases.
	for k, v := range fields {
		key := strings.ToLower(strings.TrimSpace(k))
		if _, ok := fieldAliases[key]; !ok {
			norm[key] = v
		}
	}

	a := Article{
		Title:          str(norm["title"]),
		Author:         str(norm["author"]),
		Hostname:       str(norm["hostname"]),
		Date:           str(norm["date"]),
		Categories:     joined(norm["categories"]),
		Tags:           joined(norm["tags"]),
		Fingerprint:    str(norm["fingerprint"]),
		RawText:        str(norm["raw_text"]),
		Text:           str(norm["text"]),
		Excerpt:        str(norm["excerpt"]),
		Language:       str(norm["language"]),
		Source:         str(norm["source"]),
		SourceHostname: str(norm["source_hostname"]),
		License:        str(norm["license"]),
		Comments:       str(norm["comments"]),
	}
	for _, img := range list(norm["images_url"]) {
		a.AddImage(img)
	}
	return a
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []string, []any:
		return joined(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// joined renders list-valued fields the way the store keeps them: comma separated.
func joined(v any) string {
	return strings.Join(list(v), ",")
}

func list(v any) []string {
	var out []string
	switch t := v.(type) {
	case nil:
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, e := range t {
			if s := str(e); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := str(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}
