package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"iresolve/internal/resolver"
	"iresolve/internal/suggest"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatPretty OutputFormat = "pretty"
	FormatHuman  OutputFormat = "human"
	FormatJSON   OutputFormat = "json"
	FormatYAML   OutputFormat = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatPretty, FormatHuman, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (use pretty, json or yaml)", s)
	}
}

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatPretty, FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatYAML(resp interface{}) (string, error) {
	data, err := yaml.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case suggest.Result:
		return formatResultHuman(v), nil
	case *resolver.IndexResponse:
		return formatIndexHuman(v), nil
	case *resolver.Status:
		return formatStatusHuman(v), nil
	case LookupResponse:
		return formatLookupHuman(v), nil
	default:
		return formatJSON(resp)
	}
}

// formatResultHuman prints one line per identifier, in name order.
func formatResultHuman(result suggest.Result) string {
	lines := make([]string, 0, len(result))
	for _, name := range result.Identifiers() {
		lines = append(lines, fmt.Sprintf("* %s can be imported from: %s",
			name, strings.Join(result[name].Paths, ", ")))
	}
	return strings.Join(lines, "\n")
}

func formatIndexHuman(resp *resolver.IndexResponse) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Index %s (%s)\n", resp.Meta.Mode, resp.Meta.BuildID))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("  Modules scanned: %d\n", resp.Stats.Modules))
	b.WriteString(fmt.Sprintf("  Symbols:         %d\n", resp.Meta.SymbolCount))
	b.WriteString(fmt.Sprintf("  Modules indexed: %d\n", resp.Meta.ModuleCount))
	b.WriteString(fmt.Sprintf("  Duration:        %s\n", resp.Meta.Duration))
	b.WriteString(fmt.Sprintf("  Extractor:       %s\n", resp.Meta.Extractor))

	kinds := make([]string, 0, len(resp.Stats.ByKind))
	for k, n := range resp.Stats.ByKind {
		kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
	}
	slices.Sort(kinds)
	if len(kinds) > 0 {
		b.WriteString(fmt.Sprintf("  By source:       %s\n", strings.Join(kinds, " ")))
	}

	if resp.Stats.Truncated {
		b.WriteString("\n! Build deadline reached; the index is partial.\n")
	}
	if resp.Stats.Limited {
		b.WriteString("\n! Module limit reached; the index is partial.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStatusHuman(st *resolver.Status) string {
	var b strings.Builder
	b.WriteString("iresolve Status\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString(fmt.Sprintf("Index: %s (%s)\n", st.Location, st.Format))
	if !st.Exists {
		b.WriteString("  ✗ Not built\n")
	} else {
		icon := "✓"
		text := "Fresh"
		if !st.Freshness.Fresh {
			icon, text = "⚠", "Stale"
		}
		if st.Freshness.Reason != "" {
			text += " - " + st.Freshness.Reason
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", icon, text))
	}

	if m := st.Meta; m != nil {
		b.WriteString(fmt.Sprintf("  Built:       %s (%s, %s)\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Mode, m.Duration))
		b.WriteString(fmt.Sprintf("  Symbols:     %d in %d modules\n", m.SymbolCount, m.ModuleCount))
		if m.Interpreter != "" {
			b.WriteString(fmt.Sprintf("  Interpreter: %s\n", m.Interpreter))
		}
		b.WriteString(fmt.Sprintf("  Extractor:   %s\n", m.Extractor))
		if len(m.Roots) > 0 {
			b.WriteString("  Roots:\n")
			for _, r := range m.Roots {
				b.WriteString(fmt.Sprintf("    - %s\n", r))
			}
		}
		for _, r := range m.ExtraRoots {
			b.WriteString(fmt.Sprintf("    + %s\n", r))
		}
	}

	if p := st.Python; p != nil {
		b.WriteString("\nPython Environment:\n")
		if p.IsActive {
			b.WriteString(fmt.Sprintf("  Active venv: %s\n", p.ActiveVenv))
		}
		for _, v := range p.DetectedVenvs {
			b.WriteString(fmt.Sprintf("  Found venv:  %s\n", v))
		}
		if p.Interpreter() == "" {
			b.WriteString("  No virtualenv\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatLookupHuman(resp LookupResponse) string {
	names := make([]string, 0, len(resp))
	for n := range resp {
		names = append(names, n)
	}
	slices.Sort(names)

	lines := make([]string, 0, len(names))
	for _, n := range names {
		if len(resp[n]) == 0 {
			lines = append(lines, fmt.Sprintf("* %s: not found", n))
			continue
		}
		lines = append(lines, fmt.Sprintf("* %s can be imported from: %s", n, strings.Join(resp[n], ", ")))
	}
	return strings.Join(lines, "\n")
}
