package canonical

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// CleanHTML strips markup and entities from a description fragment and
// collapses whitespace. Tags become word breaks so adjacent blocks do not
// run together.
func CleanHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpace(fragment)
	}

	var b strings.Builder
	for _, n := range doc.Nodes {
		collectText(&b, n)
	}
	return collapseSpace(b.String())
}

func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
	if n.Type == html.ElementNode {
		b.WriteByte(' ')
	}
}

// collapseSpace joins whitespace-separated words with single spaces.
// Non-breaking spaces count as whitespace.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ClassifyProcurementType reads notice-type or form-type text.
func ClassifyProcurementType(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "rfp"), strings.Contains(t, "request for proposal"):
		return domain.ProcurementRFP
	case strings.Contains(t, "rfq"), strings.Contains(t, "request for quot"):
		return domain.ProcurementRFQ
	default:
		return domain.ProcurementTender
	}
}

// parseAmount reads a currency amount such as "$1,250,000.00".
func parseAmount(raw any) *float64 {
	switch v := raw.(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case string:
		s := strings.NewReplacer("$", "", ",", "", "CAD", "", " ", "").Replace(strings.TrimSpace(v))
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

// parseCount reads an integer count that may arrive as a JSON number.
func parseCount(raw any) *int {
	switch v := raw.(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		return &v
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		return &n
	}
	return nil
}

// firstNonEmpty returns the first argument that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// stringList flattens a JSON array (or a scalar) into trimmed strings.
func stringList(raw any) []string {
	switch v := raw.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s := domain.FormatScalar(item)
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	}
	return nil
}
