package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div id="x">
		Displaying   <strong>1</strong> to
		<strong>50</strong>
	</div>`))
	require.NoError(t, err)
	require.Equal(t, "Displaying 1 to 50", CleanText(doc.Find("#x")))
}

func TestFormValues(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<form>
		<input name="xsrf_token" value="abc">
		<input name="giveaway_id" value="42">
		<textarea name="description">hello</textarea>
		<select name="region"><option value="0">no</option><option value="1" selected>yes</option></select>
	</form>`))
	require.NoError(t, err)
	values := FormValues(doc.Find("form"))
	require.Equal(t, "abc", values.Get("xsrf_token"))
	require.Equal(t, "42", values.Get("giveaway_id"))
	require.Equal(t, "hello", values.Get("description"))
	require.Equal(t, "1", values.Get("region"))
}

func TestOuterHtmlRoundTrip(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div class="rows"><div class="row">a</div><div class="row">b</div></div>`))
	require.NoError(t, err)
	sel := doc.Find(".row")
	require.Equal(t, 2, sel.Length())
	require.Equal(t, `<div class="row">a</div><div class="row">b</div>`, OuterHtml(sel))
}

func TestCleanTextKeepsLineBreaksAsSpaces(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		"<div class=\"form__row__error\"><i class=\"fa\"></i> You do not\nhave\tpermission\u200b.</div>",
	))
	require.NoError(t, err)
	require.Equal(t, "You do not have permission.", CleanText(doc.Find(".form__row__error")))
}
