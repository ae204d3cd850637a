package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getTextRecursive(child, buffer)
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText returns the visible text of the selection with whitespace
// runs collapsed.
func CleanText(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, n := range sel.Nodes {
		getTextRecursive(n, &buffer)
	}
	text := innerWhitespace.ReplaceAllString(buffer.String(), " ")
	return strings.TrimSpace(removeNonPrintable(text))
}

// OuterHtml renders every node of the selection, one after another.
func OuterHtml(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, n := range sel.Nodes {
		err := html.Render(&buffer, n)
		if err != nil {
			return buffer.String()
		}
	}
	return buffer.String()
}

// FormValues collects name=value pairs of every input inside the selection.
func FormValues(sel *goquery.Selection) url.Values {
	values := url.Values{}
	sel.Find("input[name], textarea[name], select[name]").Each(func(_ int, field *goquery.Selection) {
		name := field.AttrOr("name", "")
		switch goquery.NodeName(field) {
		case "textarea":
			values.Set(name, field.Text())
		case "select":
			values.Set(name, field.Find("option[selected]").AttrOr("value", ""))
		default:
			values.Set(name, field.AttrOr("value", ""))
		}
	})
	return values
}
