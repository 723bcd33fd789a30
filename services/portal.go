package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"timetable-api/models"
)

const (
	portalUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxPortalBody     = 4 << 20
	usernameField     = "username"
	passwordField     = "password"
	captchaField      = "captcha"
	loginFormSelector = "form#login-form, form:has(input[type=password])"
)

type PortalConfig struct {
	BaseURL       string
	LoginPath     string
	TimetablePath string
	Username      string
	Password      string
}

// PortalFetcher logs into the student portal with a cookie jar and scrapes
// the timetable table. Cookies from a previous run are replayed first, so a
// still-valid session skips the captcha entirely.
type PortalFetcher struct {
	cfg       PortalConfig
	solver    CaptchaSolver
	transport http.RoundTripper
}

func NewPortalFetcher(cfg PortalConfig, solver CaptchaSolver, transport http.RoundTripper) *PortalFetcher {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.TimetablePath == "" {
		cfg.TimetablePath = "/timetable"
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &PortalFetcher{cfg: cfg, solver: solver, transport: transport}
}

func (f *PortalFetcher) Fetch(ctx context.Context, sessionToken string) (*FetchResult, error) {
	base, err := url.Parse(f.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid portal url: %w", err)
	}
	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar, Transport: f.transport}

	if sessionToken != "" {
		if cookies, err := http.ParseCookie(sessionToken); err == nil {
			jar.SetCookies(base, cookies)
		}
	}

	body, err := f.get(ctx, client, f.cfg.TimetablePath)
	if err != nil {
		return nil, err
	}
	if isLoginPage(body) {
		log.Println("PortalFetcher - session missing or expired, logging in")
		if err := f.login(ctx, client); err != nil {
			return nil, err
		}
		if body, err = f.get(ctx, client, f.cfg.TimetablePath); err != nil {
			return nil, err
		}
		if isLoginPage(body) {
			return nil, NewError(ErrCodeUpstreamAuth, "portal session was not established after login")
		}
	}

	classes, err := ParseTimetableHTML(body)
	if err != nil {
		log.Printf("PortalFetcher - failed to parse timetable: %v; payload: %.2000s", err, body)
		return nil, WrapError(ErrCodeUpstreamParse, "failed to parse timetable page", err)
	}

	return &FetchResult{
		Classes:      classes,
		SessionToken: encodeCookies(jar.Cookies(base)),
		RawPayload:   body,
	}, nil
}

func (f *PortalFetcher) login(ctx context.Context, client *http.Client) error {
	page, err := f.get(ctx, client, f.cfg.LoginPath)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return WrapError(ErrCodeUpstreamParse, "failed to parse login page", err)
	}
	form := doc.Find(loginFormSelector).First()
	if form.Length() == 0 {
		return NewError(ErrCodeUpstreamParse, "login form not found")
	}

	// Hidden inputs carry CSRF and view-state tokens the portal expects back.
	formData := url.Values{}
	form.Find("input[type=hidden]").Each(func(_ int, s *goquery.Selection) {
		if name, ok := s.Attr("name"); ok {
			formData.Set(name, s.AttrOr("value", ""))
		}
	})
	formData.Set(usernameField, f.cfg.Username)
	formData.Set(passwordField, f.cfg.Password)

	hasCaptcha := false
	if img := form.Find("img#captcha, img.captcha").First(); img.Length() > 0 {
		hasCaptcha = true
		if f.solver == nil {
			return NewError(ErrCodeUpstreamAuth, "portal requires a captcha but no solver is configured")
		}
		image, err := f.get(ctx, client, img.AttrOr("src", ""))
		if err != nil {
			return err
		}
		text, err := f.solver.Solve(ctx, image)
		if err != nil {
			return WrapError(ErrCodeUpstreamUnavailable, "captcha solving failed", err)
		}
		formData.Set(captchaField, text)
	}

	action := form.AttrOr("action", f.cfg.LoginPath)
	body, err := f.post(ctx, client, action, formData)
	if err != nil {
		return err
	}
	if isLoginPage(body) {
		if hasCaptcha && bytes.Contains(bytes.ToLower(body), []byte("captcha-error")) {
			return WrapError(ErrCodeUpstreamAuth, "portal rejected the captcha", ErrCaptchaRejected)
		}
		return NewError(ErrCodeUpstreamAuth, "portal rejected the credentials")
	}
	log.Println("PortalFetcher - login successful")
	return nil
}

func (f *PortalFetcher) get(ctx context.Context, client *http.Client, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.resolve(ref), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating GET request: %w", err)
	}
	return f.do(client, req)
}

func (f *PortalFetcher) post(ctx context.Context, client *http.Client, ref string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.resolve(ref), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error creating POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(client, req)
}

func (f *PortalFetcher) do(client *http.Client, req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", portalUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Referer", f.resolve(f.cfg.LoginPath))

	resp, err := client.Do(req)
	if err != nil {
		// Leave timeouts and network errors for the retry layer to classify.
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPortalBody))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewError(ErrCodeUpstreamAuth, fmt.Sprintf("portal returned %s", resp.Status))
	case resp.StatusCode >= 500:
		return nil, NewError(ErrCodeUpstreamUnavailable, fmt.Sprintf("portal returned %s", resp.Status))
	case resp.StatusCode >= 400:
		return nil, NewError(ErrCodeUpstreamParse, fmt.Sprintf("portal returned %s for %s", resp.Status, req.URL.Path))
	}
	return body, nil
}

func (f *PortalFetcher) resolve(ref string) string {
	base, err := url.Parse(f.cfg.BaseURL)
	if err != nil {
		return ref
	}
	target, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(target).String()
}

func isLoginPage(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find(loginFormSelector).Length() > 0
}

// timetableColumns maps lower-cased header labels to RawClass fields.
var timetableColumns = map[string]func(*models.RawClass, string){
	"day":             func(r *models.RawClass, v string) { r.Day = v },
	"date":            func(r *models.RawClass, v string) { r.Day = v },
	"time":            func(r *models.RawClass, v string) { r.Time = v },
	"timing":          func(r *models.RawClass, v string) { r.Time = v },
	"attendance time": func(r *models.RawClass, v string) { r.AttendanceTime = v },
	"course code":     func(r *models.RawClass, v string) { r.CourseCode = v },
	"code":            func(r *models.RawClass, v string) { r.CourseCode = v },
	"course name":     func(r *models.RawClass, v string) { r.CourseName = v },
	"course":          func(r *models.RawClass, v string) { r.CourseName = v },
	"type":            func(r *models.RawClass, v string) { r.Type = v },
	"venue":           func(r *models.RawClass, v string) { r.Venue = v },
	"room":            func(r *models.RawClass, v string) { r.Venue = v },
	"location":        func(r *models.RawClass, v string) { r.Venue = v },
	"group":           func(r *models.RawClass, v string) { r.Group = v },
	"section":         func(r *models.RawClass, v string) { r.Group = v },
}

// ParseTimetableHTML reads table#timetable, locating columns by header text.
func ParseTimetableHTML(page []byte) ([]models.RawClass, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}
	table := doc.Find("table#timetable").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("timetable table not found")
	}

	setters := make(map[int]func(*models.RawClass, string))
	seen := make(map[string]bool)
	table.Find("thead th").Each(func(i int, s *goquery.Selection) {
		label := strings.ToLower(collapseSpaces(s.Text()))
		if set, ok := timetableColumns[label]; ok {
			setters[i] = set
			seen[label] = true
		}
	})
	if !(seen["day"] || seen["date"]) || !(seen["time"] || seen["timing"]) || !(seen["course code"] || seen["code"]) {
		return nil, fmt.Errorf("timetable header is missing day, time or course code columns")
	}

	classes := make([]models.RawClass, 0)
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}
		var raw models.RawClass
		cells.Each(func(i int, cell *goquery.Selection) {
			if set, ok := setters[i]; ok {
				set(&raw, strings.TrimSpace(cell.Text()))
			}
		})
		classes = append(classes, raw)
	})
	return classes, nil
}

func encodeCookies(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
