// Package listing interprets the grid's download listing, which is either a
// JSON document {"value": [...]} or an HTML directory index.
package listing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var errMissingValue = errors.New(`listing: JSON has no "value" field`)

type document struct {
	Value *[]string `json:"value"`
}

// Parse returns the file names in body, in the order the grid sent them.
// It never fails: a body that is neither form yields an empty slice.
func Parse(body string) []string {
	names, err := parseJSON(body)
	if err == nil {
		return names
	}
	slog.Debug("Listing is not JSON, falling back to HTML", "error", err)
	return parseHTML(body)
}

func parseJSON(body string) ([]string, error) {
	var doc document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, err
	}
	if doc.Value == nil {
		return nil, errMissingValue
	}
	names := make([]string, len(*doc.Value))
	copy(names, *doc.Value)
	return names, nil
}

// parseHTML collects the text of every anchor element in document order.
func parseHTML(body string) []string {
	names := []string{}

	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		slog.Debug("Listing is not HTML either", "error", err)
		return names
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			names = append(names, text(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return names
}

// text returns the whitespace-normalized text content of n.
func text(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
