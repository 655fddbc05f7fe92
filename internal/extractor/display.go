package extractor

import (
	"fmt"
	"strings"
)

const noData = "No data to display"

// FormatForDisplay renders extracted data as Markdown. Older extractions
// using important_places, life_lessons_and_values or a parents object are
// also understood.
func FormatForDisplay(data map[string]any) string {
	if inner, ok := data["data"].(map[string]any); ok {
		data = inner
	}
	if len(data) == 0 {
		return noData
	}

	var b strings.Builder

	if people := objects(data["people"]); len(people) > 0 {
		b.WriteString("### People Mentioned\n\n")
		for _, p := range people {
			fmt.Fprintf(&b, "**%s**", text(p, "name", "Unknown"))
			if rel := text(p, "relationship", ""); rel != "" {
				fmt.Fprintf(&b, " - %s", rel)
			}
			b.WriteString("\n")
			if born := text(p, "birth_date", ""); born != "" {
				fmt.Fprintf(&b, "- Born: %s", born)
				if place := text(p, "birth_place", ""); place != "" {
					fmt.Fprintf(&b, " in %s", place)
				}
				b.WriteString("\n")
			}
			if notes := text(p, "notes", ""); notes != "" {
				fmt.Fprintf(&b, "- %s\n", notes)
			}
			b.WriteString("\n")
		}
	}

	places := objects(data["places"])
	if len(places) == 0 {
		places = objects(data["important_places"])
	}
	if len(places) > 0 {
		b.WriteString("### Places\n\n")
		for _, p := range places {
			fmt.Fprintf(&b, "**%s**\n", text(p, "location", "Unknown"))
			if sig := text(p, "significance", ""); sig != "" {
				fmt.Fprintf(&b, "- %s\n", sig)
			}
			if period := text(p, "time_period", ""); period != "" {
				fmt.Fprintf(&b, "- Time period: %s\n", period)
			}
			b.WriteString("\n")
		}
	}

	if values := objects(data["values_and_personality"]); len(values) > 0 {
		b.WriteString("### Values & Personality\n\n")
		for _, v := range values {
			fmt.Fprintf(&b, "**%s**\n", text(v, "value_or_trait", "Unknown"))
			if ev := text(v, "evidence", ""); ev != "" {
				fmt.Fprintf(&b, "- Evidence: %s\n", ev)
			}
			b.WriteString("\n")
		}
	}

	lessons := objects(data["life_lessons"])
	if len(lessons) == 0 {
		lessons = objects(data["life_lessons_and_values"])
	}
	if len(lessons) > 0 {
		b.WriteString("### Life Lessons & Wisdom\n\n")
		for _, l := range lessons {
			fmt.Fprintf(&b, "**%s**\n", text(l, "lesson", "Unknown"))
			if c := text(l, "context", ""); c != "" {
				fmt.Fprintf(&b, "- Context: %s\n", c)
			}
			if q := text(l, "quote", ""); q != "" {
				fmt.Fprintf(&b, "- Quote: *\"%s\"*\n", q)
			}
			if src := text(l, "source", ""); src != "" {
				fmt.Fprintf(&b, "- Source: %s\n", src)
			}
			b.WriteString("\n")
		}
	}

	if themes := objects(data["themes_and_topics"]); len(themes) > 0 {
		b.WriteString("### Themes & Topics\n\n")
		names := make([]string, len(themes))
		for i, t := range themes {
			names[i] = text(t, "theme", "Unknown")
		}
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("\n\n")
	}

	if family, ok := data["family_tree"].(map[string]any); ok && len(family) > 0 {
		writeFamilyTree(&b, family)
	}

	if b.Len() == 0 {
		return noData
	}
	return b.String()
}

func writeFamilyTree(b *strings.Builder, family map[string]any) {
	b.WriteString("### Family Tree\n\n")

	switch parents := family["parents"].(type) {
	case []any:
		if list := objects(parents); len(list) > 0 {
			b.WriteString("**Parents:**\n\n")
			for _, p := range list {
				fmt.Fprintf(b, "- **%s**", text(p, "name", "Unknown"))
				if info := birthInfo(p, false); info != "" {
					fmt.Fprintf(b, " (%s)", info)
				}
				writeNotes(b, p)
			}
		}
	case map[string]any:
		if len(parents) > 0 {
			b.WriteString("**Parents:**\n\n")
			for _, role := range []string{"father", "mother"} {
				p, ok := parents[role].(map[string]any)
				if !ok {
					continue
				}
				fmt.Fprintf(b, "- **%s** (%s)", text(p, "name", "Unknown"), strings.ToUpper(role[:1])+role[1:])
				if info := birthInfo(p, false); info != "" {
					fmt.Fprintf(b, " - %s", info)
				}
				writeNotes(b, p)
			}
		}
	}

	if siblings := objects(family["siblings"]); len(siblings) > 0 {
		b.WriteString("**Siblings:**\n\n")
		for _, s := range siblings {
			fmt.Fprintf(b, "- **%s**", text(s, "name", "Unknown"))
			if rel := text(s, "relationship", ""); rel != "" {
				fmt.Fprintf(b, " (%s)", rel)
			}
			fmt.Fprintf(b, " - %s", birthInfo(s, true))
			writeNotes(b, s)
		}
	}

	if spouse, ok := family["spouse"].(map[string]any); ok && text(spouse, "name", "") != "" {
		b.WriteString("**Spouse:**\n\n")
		fmt.Fprintf(b, "- **%s**", text(spouse, "name", ""))
		if married := text(spouse, "marriage_date", ""); married != "" {
			fmt.Fprintf(b, " (married %s)", married)
		}
		writeNotes(b, spouse)
	}

	if children := objects(family["children"]); len(children) > 0 {
		b.WriteString("**Children:**\n\n")
		for _, c := range children {
			fmt.Fprintf(b, "- **%s**", text(c, "name", "Unknown"))
			if born := text(c, "birth_date", ""); born != "" {
				fmt.Fprintf(b, " (born %s)", born)
			}
			writeNotes(b, c)
		}
	}
}

// birthInfo joins birth date and place. With explicit set, missing parts are
// spelled out so gaps in the family tree stand out.
func birthInfo(p map[string]any, explicit bool) string {
	var parts []string
	if born := text(p, "birth_date", ""); born != "" {
		parts = append(parts, "born "+born)
	} else if explicit {
		parts = append(parts, "birth date not mentioned")
	}
	if place := text(p, "birth_place", ""); place != "" {
		parts = append(parts, "in "+place)
	} else if explicit {
		parts = append(parts, "birth place not mentioned")
	}
	return strings.Join(parts, ", ")
}

func writeNotes(b *strings.Builder, p map[string]any) {
	b.WriteString("\n")
	if notes := text(p, "notes", ""); notes != "" {
		fmt.Fprintf(b, "  - %s\n", notes)
	}
	b.WriteString("\n")
}

func objects(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func text(m map[string]any, key, fallback string) string {
	switch v := m[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%g", v)
	}
	return fallback
}
