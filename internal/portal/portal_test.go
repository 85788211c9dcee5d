package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/geop-sync/internal/lesson"
)

const loginPage = `<html><body><form action="update/login.asp" method="post">
<input type="text" name="username"><input type="password" name="password">
</form></body></html>`

const homePage = `<html><body><h1>Benvenuto</h1></body></html>`

const feed = "\xEF\xBB\xBF" + `[
  {"id": 0, "title": "", "tooltip": "", "start": "2025-03-24", "end": "2025-03-24"},
  {"id": 4711, "title": "Lezione", "tooltip": "PRESENTE<br>Materia: UFS02 - Reti<br>Docente: Rossi", "ClasseEvento": "lezione", "start": "2025-03-25T08:40:00", "end": "2025-03-25T12:40:00"},
  {"id": "4712", "title": "SOSPENSIONE DIDATTICA", "tooltip": "x", "start": "2025-03-26", "end": "2025-03-26"}
]`

// newPortal fakes the portal: a valid login sets a session cookie that the
// events endpoint requires.
func newPortal(t *testing.T, eventsStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/"+LoginPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("login method = %s, want POST", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "geop-sync") {
			t.Errorf("User-Agent = %q, should contain 'geop-sync'", ua)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() error = %v", err)
		}
		if r.PostForm.Get("username") != "mario" || r.PostForm.Get("password") != "secret" {
			fmt.Fprint(w, loginPage)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "ASPSESSIONID", Value: "abc", Path: "/"})
		fmt.Fprint(w, homePage)
	})
	mux.HandleFunc("/"+EventsPath, func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("ASPSESSIONID"); err != nil {
			fmt.Fprint(w, loginPage)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() error = %v", err)
		}
		if r.PostForm.Get("start") != "2025-03-24" || r.PostForm.Get("end") != "2025-05-05" {
			t.Errorf("range = %s..%s", r.PostForm.Get("start"), r.PostForm.Get("end"))
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(eventsStatus)
		if eventsStatus == http.StatusOK {
			fmt.Fprint(w, feed)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testRange() lesson.Range {
	return lesson.Range{
		Start: time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
	}
}

func TestFetch(t *testing.T) {
	server := newPortal(t, http.StatusOK)

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	raws, err := c.Fetch(context.Background(), "mario", "secret", testRange())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(raws) != 3 {
		t.Fatalf("got %d records, want 3", len(raws))
	}
	if raws[1].ID != "4711" || raws[2].ID != "4712" {
		t.Errorf("ids = %q, %q; want 4711, 4712", raws[1].ID, raws[2].ID)
	}
	if !raws[0].ID.IsSentinel() {
		t.Errorf("first record should carry the sentinel id, got %q", raws[0].ID)
	}
	if raws[1].ClassEvent != "lezione" {
		t.Errorf("ClassEvent = %q, want lezione", raws[1].ClassEvent)
	}

	lessons, skipped := lesson.Parse(raws)
	if len(lessons) != 1 || skipped != 2 {
		t.Fatalf("Parse() = %d lessons, %d skipped; want 1, 2", len(lessons), skipped)
	}
	if lessons[0].Subject != "UFS02 - Reti" {
		t.Errorf("Subject = %q", lessons[0].Subject)
	}
}

func TestLogin_Rejected(t *testing.T) {
	server := newPortal(t, http.StatusOK)

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = c.Login(context.Background(), "mario", "wrong")
	if !errors.Is(err, ErrLoginRejected) {
		t.Errorf("Login() error = %v, want ErrLoginRejected", err)
	}
}

func TestEvents_WithoutSession(t *testing.T) {
	server := newPortal(t, http.StatusOK)

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Events(context.Background(), testRange())
	if !errors.Is(err, ErrLoginRejected) {
		t.Errorf("Events() error = %v, want ErrLoginRejected", err)
	}
}

func TestEvents_HTTPError(t *testing.T) {
	server := newPortal(t, http.StatusInternalServerError)

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Fetch(context.Background(), "mario", "secret", testRange())
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
	if errors.Is(err, ErrLoginRejected) {
		t.Errorf("HTTP failure should not be reported as a rejected login: %v", err)
	}
}

func TestFetch_ContextCanceled(t *testing.T) {
	server := newPortal(t, http.StatusOK)

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Fetch(ctx, "mario", "secret", testRange()); !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}

func TestDecodeEvents(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{name: "empty array", body: "[]", want: 0},
		{name: "whitespace", body: "  \n", wantErr: true},
		{name: "html", body: homePage, wantErr: true},
		{name: "null id", body: `[{"id": null, "title": "x"}]`, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raws, err := decodeEvents([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeEvents() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(raws) != tt.want {
				t.Errorf("got %d records, want %d", len(raws), tt.want)
			}
		})
	}
}

func TestNew_BaseURL(t *testing.T) {
	c, err := New("https://example.test/geopcfp2")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got := c.baseURL.ResolveReference(&url.URL{Path: LoginPath}).String()
	if got != "https://example.test/geopcfp2/update/login.asp" {
		t.Errorf("login URL = %q", got)
	}
}
