package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"

	"github.com/joshsymonds/linkharvest/internal/logging"
)

const authState = "state-token"

// Authorizer turns credentials plus a stored (or freshly obtained) token
// into an authorized HTTP client.
type Authorizer struct {
	Config   *oauth2.Config
	Store    TokenStore
	Prompter CodePrompter
	Logger   *slog.Logger
}

// NewAuthorizer constructs an Authorizer with sane defaults.
func NewAuthorizer(cfg *oauth2.Config, store TokenStore, prompter CodePrompter, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if prompter == nil {
		prompter = NewConsolePrompter()
	}
	return &Authorizer{Config: cfg, Store: store, Prompter: prompter, Logger: logger}
}

// Authorize uses the stored token when there is one and otherwise runs the
// interactive code flow. A stored token is trusted as-is; refreshing it is
// left to the oauth2 transport.
func (a *Authorizer) Authorize(ctx context.Context) (*http.Client, error) {
	tok, err := a.Store.Load()
	switch {
	case err == nil:
		a.Logger.DebugContext(ctx, "using stored token", slog.String("access_token", logging.SanitizeToken(tok.AccessToken)))
		return a.client(ctx, tok), nil
	case errors.Is(err, ErrNoToken):
		return a.Reauthorize(ctx)
	default:
		return nil, fmt.Errorf("load token: %w", err)
	}
}

// Reauthorize always runs the interactive flow and replaces the stored token.
func (a *Authorizer) Reauthorize(ctx context.Context) (*http.Client, error) {
	tok, err := a.exchange(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.Store.Save(tok); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	a.Logger.InfoContext(ctx, "token stored", logging.Path(fmt.Sprint(a.Store)))
	return a.client(ctx, tok), nil
}

func (a *Authorizer) exchange(ctx context.Context) (*oauth2.Token, error) {
	authURL := a.Config.AuthCodeURL(authState, oauth2.AccessTypeOffline)
	code, err := a.Prompter.PromptCode(ctx, authURL)
	if err != nil {
		return nil, fmt.Errorf("prompt for authorization code: %w", err)
	}
	tok, err := a.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("retrieve access token: %w", err)
	}
	return tok, nil
}

func (a *Authorizer) client(ctx context.Context, tok *oauth2.Token) *http.Client {
	src := &persistingSource{
		src:    a.Config.TokenSource(ctx, tok),
		store:  a.Store,
		last:   tok.AccessToken,
		logger: a.Logger,
	}
	return oauth2.NewClient(ctx, src)
}

// persistingSource writes a token back to the store whenever the wrapped
// source hands out a new access token.
type persistingSource struct {
	mu     sync.Mutex
	src    oauth2.TokenSource
	store  TokenStore
	last   string
	logger *slog.Logger
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken == p.last {
		return tok, nil
	}
	p.last = tok.AccessToken
	if err := p.store.Save(tok); err != nil {
		p.logger.Warn("failed to save refreshed token", logging.Err(err))
	} else {
		p.logger.Debug("refreshed token saved")
	}
	return tok, nil
}
