package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/geop-sync/internal/lesson"
)

const (
	DefaultBaseURL = "https://itsar.registrodiclasse.it/geopcfp2/"
	LoginPath      = "update/login.asp"
	EventsPath     = "json/fullcalendar_events_alunno.asp"
	UserAgent      = "geop-sync/1.0 (github.com/pfrederiksen/geop-sync)"
	Timeout        = 30 * time.Second
)

// ErrLoginRejected is returned when the portal answers a login with its
// login form instead of a session.
var ErrLoginRejected = errors.New("portal rejected the login")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Client is a portal session. It is not safe for concurrent logins.
type Client struct {
	client  *http.Client
	baseURL *url.URL
}

// New creates a Client for the portal rooted at baseURL. An empty baseURL
// selects DefaultBaseURL.
func New(baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing portal URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &Client{
		client: &http.Client{
			Timeout: Timeout,
			Jar:     jar,
		},
		baseURL: u,
	}, nil
}

// SetTimeout changes the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.client.Timeout = d
	}
}

// Login opens a session with the given credentials.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{
		"username": {username},
		"password": {password},
	}

	body, err := c.post(ctx, LoginPath, form)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	rejected, err := isLoginPage(body)
	if err != nil {
		return fmt.Errorf("reading login response: %w", err)
	}
	if rejected {
		return ErrLoginRejected
	}
	return nil
}

// Events fetches the calendar records of the logged-in student for r.
func (c *Client) Events(ctx context.Context, r lesson.Range) ([]lesson.Raw, error) {
	form := url.Values{
		"start": {r.StartDate()},
		"end":   {r.EndDate()},
	}

	body, err := c.post(ctx, EventsPath, form)
	if err != nil {
		return nil, fmt.Errorf("fetching events: %w", err)
	}

	raws, err := decodeEvents(body)
	if err != nil {
		// An expired session is answered with the login page.
		if rejected, _ := isLoginPage(body); rejected {
			return nil, ErrLoginRejected
		}
		return nil, err
	}
	return raws, nil
}

// Fetch logs in and fetches the records for r in one call.
func (c *Client) Fetch(ctx context.Context, username, password string, r lesson.Range) ([]lesson.Raw, error) {
	if err := c.Login(ctx, username, password); err != nil {
		return nil, err
	}
	return c.Events(ctx, r)
}

func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	target := c.baseURL.ResolveReference(&url.URL{Path: path})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from %s: %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", path, err)
	}
	return body, nil
}

func decodeEvents(body []byte) ([]lesson.Raw, error) {
	body = bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	if len(body) == 0 {
		return nil, errors.New("empty events response")
	}

	var raws []lesson.Raw
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("decoding events: %w", err)
	}
	return raws, nil
}

// isLoginPage reports whether body is an HTML page asking for a password.
func isLoginPage(body []byte) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc.Find(`input[type="password"]`).Length() > 0, nil
}
