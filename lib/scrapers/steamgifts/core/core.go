package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"sgassist/lib/restyutil"
	"sgassist/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("sgassist.scrapers.steamgifts.core")

var ErrNotLoggedIn = fmt.Errorf("not signed in, the session cookie is missing or expired")

const sessionCookie = "PHPSESSID"

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	tokenMu   sync.RWMutex
	xsrfToken string
	points    string
}

type ClientOptions struct {
	BaseUrl   string
	SessionId string
	// Cloudflare bypass rewrites the transport headers, tests against a
	// local server turn it off.
	DisableCloudflareBypass bool
	DebugOutput             restyutil.InstrumentOutput
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseUrl)
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(baseUrl.String(), "/"))
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if opts.SessionId != "" {
		jar.SetCookies(baseUrl, []*http.Cookie{{
			Name:  sessionCookie,
			Value: opts.SessionId,
			Path:  "/",
		}})
	}
	client.SetCookieJar(jar)
	if !opts.DisableCloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "sgassist.scrapers.steamgifts.http")
	restyutil.InstrumentClient(client, opts.DebugOutput)

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}, nil
}

// Page is a fetched html document along with the url it ended up at
// after redirects.
type Page struct {
	Doc      *goquery.Document
	FinalUrl *url.URL
	Body     string
}

// Path is the final url path, which is how creation success is detected.
func (p Page) Path() string {
	if p.FinalUrl == nil {
		return ""
	}
	return p.FinalUrl.Path
}

func (c *Client) XsrfToken() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.xsrfToken
}

// Points is the last points balance seen in the site header or an ajax response.
func (c *Client) Points() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.points
}

func (c *Client) observe(doc *goquery.Document) {
	token := doc.Find("input[name=xsrf_token]").First().AttrOr("value", "")
	points := strings.TrimSpace(doc.Find(".nav__points").First().Text())

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if token != "" {
		c.xsrfToken = token
	}
	if points != "" {
		c.points = points
	}
}

func (c *Client) toPage(res *resty.Response) (Page, error) {
	if res.IsError() {
		return Page{}, fmt.Errorf("%s %s: %s", res.Request.Method, res.Request.URL, res.Status())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return Page{}, err
	}
	c.observe(doc)

	var finalUrl *url.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalUrl = res.RawResponse.Request.URL
	}
	return Page{Doc: doc, FinalUrl: finalUrl, Body: res.String()}, nil
}

func (c *Client) Get(ctx context.Context, path string) (Page, error) {
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	res, err := c.Http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return Page{}, err
	}
	page, err := c.toPage(res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read page")
		return Page{}, err
	}
	return page, nil
}

func (c *Client) GetDocument(ctx context.Context, path string) (*goquery.Document, error) {
	page, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return page.Doc, nil
}

// PostForm submits form to path, adding the current xsrf token when the
// form does not carry one.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (Page, error) {
	ctx, span := tracer.Start(ctx, "PostForm")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(c.withToken(form)).
		Post(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post form")
		return Page{}, err
	}
	page, err := c.toPage(res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read page")
		return Page{}, err
	}
	return page, nil
}

func (c *Client) withToken(form url.Values) url.Values {
	out := url.Values{}
	for k, v := range form {
		out[k] = append([]string(nil), v...)
	}
	if out.Get("xsrf_token") == "" {
		if token := c.XsrfToken(); token != "" {
			out.Set("xsrf_token", token)
		}
	}
	return out
}

type AjaxResponse struct {
	Type   string     `json:"type"`
	Msg    string     `json:"msg"`
	Html   string     `json:"html"`
	Points LooseString `json:"points"`
}

// LooseString accepts either a json string or a json number.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var str string
		err := json.Unmarshal(data, &str)
		*s = LooseString(str)
		return err
	}
	if string(data) == "null" {
		*s = ""
		return nil
	}
	*s = LooseString(data)
	return nil
}

func (r AjaxResponse) Success() bool {
	return r.Type == "success"
}

// PostAjax posts form to /ajax.php and decodes the json reply.
func (c *Client) PostAjax(ctx context.Context, form url.Values) (AjaxResponse, error) {
	ctx, span := tracer.Start(ctx, "PostAjax")
	defer span.End()
	span.SetAttributes(attribute.String("do", form.Get("do")))

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(c.withToken(form)).
		SetHeader("accept", "application/json").
		Post("/ajax.php")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post ajax request")
		return AjaxResponse{}, err
	}
	if res.IsError() {
		err = fmt.Errorf("ajax %s: %s", form.Get("do"), res.Status())
		span.RecordError(err)
		span.SetStatus(codes.Error, "ajax request failed")
		return AjaxResponse{}, err
	}

	var out AjaxResponse
	err = json.Unmarshal(res.Body(), &out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode ajax response")
		return AjaxResponse{}, fmt.Errorf("decode ajax %s: %w", form.Get("do"), err)
	}
	if out.Points != "" {
		c.tokenMu.Lock()
		c.points = string(out.Points)
		c.tokenMu.Unlock()
	}
	return out, nil
}

// EnsureSession fetches the front page when no xsrf token is known yet and
// fails when the page is rendered for a signed out visitor.
func (c *Client) EnsureSession(ctx context.Context) error {
	if c.XsrfToken() != "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "EnsureSession")
	defer span.End()

	page, err := c.Get(ctx, "/")
	if err != nil {
		return err
	}
	if SignedOut(page.Doc) || c.XsrfToken() == "" {
		span.SetStatus(codes.Error, ErrNotLoggedIn.Error())
		return ErrNotLoggedIn
	}
	return nil
}

// SignedOut reports whether doc shows the "sign in through steam" header.
func SignedOut(doc *goquery.Document) bool {
	return doc.Find(".nav__sits").Length() > 0
}

// Resolve turns a site relative href into an absolute url string.
func (c *Client) Resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return c.BaseUrl.ResolveReference(ref).String()
}
