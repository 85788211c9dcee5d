package credentials

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/pfrederiksen/geop-sync/internal/logger"
)

// Provider hands out OAuth2 token sources for the Calendar API.
type Provider struct {
	config *oauth2.Config
	store  *TokenStore
}

// NewProvider reads the client secrets file and binds it to store.
func NewProvider(credentialsFile string, store *TokenStore) (*Provider, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secrets: %w", err)
	}
	return NewProviderFromJSON(data, store)
}

// NewProviderFromJSON is NewProvider for an in-memory client secrets document.
func NewProviderFromJSON(secrets []byte, store *TokenStore) (*Provider, error) {
	config, err := google.ConfigFromJSON(secrets, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client secrets: %w", err)
	}
	return &Provider{config: config, store: store}, nil
}

// TokenSource returns a source that refreshes the stored token when it
// expires and saves every new token. It returns ErrNoToken before the first
// authorization.
func (p *Provider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := p.store.Load()
	if err != nil {
		return nil, err
	}

	src := &persistingSource{
		base:  p.config.TokenSource(ctx, tok),
		store: p.store,
		last:  tok.AccessToken,
	}
	return oauth2.ReuseTokenSource(tok, src), nil
}

// AuthCodeURL returns the consent page URL. Offline access with forced
// approval guarantees a refresh token.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	if err := p.store.Save(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Authorize runs the installed-app flow: it listens on a loopback port,
// writes the consent URL to out and waits for Google to redirect back with
// the authorization code.
func (p *Provider) Authorize(ctx context.Context, out io.Writer) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("opening loopback listener: %w", err)
	}

	state, err := randomState()
	if err != nil {
		listener.Close()
		return nil, err
	}

	p.config.RedirectURL = fmt.Sprintf("http://%s/", listener.Addr().String())

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)
	var once sync.Once

	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := result{code: q.Get("code")}
		switch {
		case q.Get("state") != state:
			res.err = errors.New("authorization state mismatch")
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case res.code == "":
			res.err = errors.New("authorization response has no code")
		}

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "geop-sync is authorized. You can close this window.")
		}
		once.Do(func() { results <- res })
	})}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			once.Do(func() { results <- result{err: fmt.Errorf("serving redirect: %w", err)} })
		}
	}()
	defer server.Close()

	fmt.Fprintf(out, "Open this URL in your browser to authorize geop-sync:\n\n%s\n\n", p.AuthCodeURL(state))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		return p.Exchange(ctx, res.code)
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// persistingSource saves each token its base source produces that differs
// from the last one seen.
type persistingSource struct {
	base  oauth2.TokenSource
	store *TokenStore

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tok.AccessToken != s.last {
		if err := s.store.Save(tok); err != nil {
			logger.Warn("Failed to persist refreshed token", logger.Fields{
				"error": err.Error(),
			})
		} else {
			s.last = tok.AccessToken
		}
	}
	return tok, nil
}
