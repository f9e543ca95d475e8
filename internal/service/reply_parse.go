package service

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	complaintBoilerplate = "Yes, the text is a complaint."

	placeholderSummary    = "No summary available"
	placeholderProduct    = "No product identified"
	placeholderSubProduct = "No sub-product identified"

	labelledProductFallback    = "Product Category Example"
	labelledSubProductFallback = "Sub-product Category Example"
)

var (
	categoryLabelPattern   = regexp.MustCompile(`^Product:|Sub-product:`)
	labelledSummaryPattern = regexp.MustCompile(`(?i)summary:\s*(.*)`)
	labelledProductPattern = regexp.MustCompile(`(?i)product:\s*(.*)`)
	labelledSubPattern     = regexp.MustCompile(`(?i)sub-product:\s*(.*)`)
)

// Classification is the outcome of the plain-text complaint check.
type Classification struct {
	IsComplaint bool
	Summary     string
	Degraded    bool
}

// Category holds the product labels assigned to a complaint. Nil means no line was returned.
type Category struct {
	Product    *string
	SubProduct *string
}

// StructuredAnalysis mirrors the JSON object requested from the model for video evidence.
type StructuredAnalysis struct {
	IsComplaint bool   `json:"is_complaint"`
	Summary     string `json:"summary"`
	Product     string `json:"product"`
	SubProduct  string `json:"sub_product"`
}

// LabelledAnalysis is extracted from a free-text reply carrying "Summary:"-style labels.
type LabelledAnalysis struct {
	IsComplaint bool
	Summary     string
	Product     string
	SubProduct  string
}

func fallbackStructuredAnalysis() StructuredAnalysis {
	return StructuredAnalysis{
		IsComplaint: false,
		Summary:     placeholderSummary,
		Product:     placeholderProduct,
		SubProduct:  placeholderSubProduct,
	}
}

// StripCodeFences removes markdown fences and trims the result. Replies without
// fences are returned untouched.
func StripCodeFences(reply string) string {
	if !strings.Contains(reply, "```") {
		return reply
	}
	stripped := strings.ReplaceAll(reply, "```json", "")
	stripped = strings.ReplaceAll(stripped, "```", "")
	return strings.TrimSpace(stripped)
}

// ParseClassification reads a yes/no reply followed by a prose summary.
func ParseClassification(reply string) Classification {
	text := StripCodeFences(reply)
	if strings.TrimSpace(text) == "" {
		return Classification{Summary: placeholderSummary, Degraded: true}
	}

	return Classification{
		IsComplaint: strings.Contains(strings.ToLower(text), "yes"),
		Summary:     strings.TrimSpace(strings.Replace(text, complaintBoilerplate, "", 1)),
	}
}

// ParseStructuredAnalysis decodes the JSON reply as-is. Placeholders are used
// when the reply is not a JSON object of the expected shape or a key is absent.
func ParseStructuredAnalysis(reply string) (StructuredAnalysis, bool) {
	var wire struct {
		IsComplaint bool    `json:"is_complaint"`
		Summary     *string `json:"summary"`
		Product     *string `json:"product"`
		SubProduct  *string `json:"sub_product"`
	}
	if err := json.Unmarshal([]byte(StripCodeFences(reply)), &wire); err != nil {
		return fallbackStructuredAnalysis(), true
	}

	out := fallbackStructuredAnalysis()
	out.IsComplaint = wire.IsComplaint
	degraded := false
	for _, field := range []struct {
		src *string
		dst *string
	}{
		{wire.Summary, &out.Summary},
		{wire.Product, &out.Product},
		{wire.SubProduct, &out.SubProduct},
	} {
		if field.src == nil {
			degraded = true
			continue
		}
		*field.dst = *field.src
	}
	return out, degraded
}

// ParseCategory takes the first two non-empty lines as product and sub-product.
func ParseCategory(reply string) Category {
	var values []string
	for _, line := range strings.Split(reply, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		values = append(values, stripCategoryLabel(line))
		if len(values) == 2 {
			break
		}
	}

	var category Category
	if len(values) > 0 && values[0] != "" {
		product := values[0]
		category.Product = &product
	}
	if len(values) > 1 && values[1] != "" {
		sub := values[1]
		category.SubProduct = &sub
	}
	return category
}

func stripCategoryLabel(line string) string {
	if loc := categoryLabelPattern.FindStringIndex(line); loc != nil {
		line = line[:loc[0]] + line[loc[1]:]
	}
	return strings.TrimSpace(line)
}

// ParseLabelledAnalysis reads "Summary:", "Product:" and "Sub-product:" labels.
// The boolean result reports whether any field fell back to a placeholder.
func ParseLabelledAnalysis(reply string) (LabelledAnalysis, bool) {
	text := strings.TrimSpace(reply)
	out := LabelledAnalysis{
		IsComplaint: strings.Contains(strings.ToLower(text), "complaint"),
		Summary:     placeholderSummary,
		Product:     labelledProductFallback,
		SubProduct:  labelledSubProductFallback,
	}

	degraded := false
	if m := labelledSummaryPattern.FindStringSubmatch(text); m != nil {
		out.Summary = strings.TrimSpace(m[1])
	} else {
		degraded = true
	}
	if m := labelledProductPattern.FindStringSubmatch(text); m != nil {
		out.Product = strings.TrimSpace(m[1])
	} else {
		degraded = true
	}
	if m := labelledSubPattern.FindStringSubmatch(text); m != nil {
		out.SubProduct = strings.TrimSpace(m[1])
	} else {
		degraded = true
	}
	return out, degraded
}

type selfQuery struct {
	Query  string `json:"query"`
	Filter string `json:"filter"`
}

// parseSelfQuery extracts the rewritten search text. Unparsable replies fall
// back to the caller's raw query.
func parseSelfQuery(reply, raw string) (selfQuery, bool) {
	var out selfQuery
	if err := json.Unmarshal([]byte(StripCodeFences(reply)), &out); err != nil {
		return selfQuery{Query: raw, Filter: noFilter}, true
	}
	if strings.TrimSpace(out.Query) == "" {
		out.Query = raw
	}
	if out.Filter == "" {
		out.Filter = noFilter
	}
	return out, false
}

func stringOr(value *string, fallback string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return fallback
	}
	return *value
}
