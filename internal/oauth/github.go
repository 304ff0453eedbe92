package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/akhatua2/designx/pkg/extapi"
)

const (
	defaultGithubTokenURL = "https://github.com/login/oauth/access_token"
	defaultGithubAPIBase  = "https://api.github.com"
)

type GitHub struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBase      string
	HTTP         *http.Client
}

func (g *GitHub) Exchange(ctx context.Context, code string) (extapi.TokenResponse, error) {
	if g.ClientID == "" || g.ClientSecret == "" {
		return extapi.TokenResponse{}, ErrNotConfigured
	}
	log.Printf("provider=github: exchanging authorization code (length=%d)", len(code))

	endpoint := g.TokenURL
	if endpoint == "" {
		endpoint = defaultGithubTokenURL
	}
	form := url.Values{
		"client_id":     {g.ClientID},
		"client_secret": {g.ClientSecret},
		"code":          {code},
	}
	data, status, err := postForm(ctx, httpClient(g.HTTP), endpoint, form, "application/json")
	if err != nil {
		return extapi.TokenResponse{}, err
	}
	if status != http.StatusOK || stringField(data, "error") != "" {
		return extapi.TokenResponse{}, &ExchangeError{Provider: "github", Reason: providerErrorReason(data, status)}
	}
	token := stringField(data, "access_token")
	if token == "" {
		return extapi.TokenResponse{}, &ExchangeError{Provider: "github", Reason: "no access token in response"}
	}
	log.Printf("provider=github: token exchange successful")
	return extapi.TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

// User looks up the authenticated GitHub user for a bearer token. Used
// by the extension to verify a stored credential still works.
func (g *GitHub) User(ctx context.Context, token string) (map[string]any, int, error) {
	base := g.APIBase
	if base == "" {
		base = defaultGithubAPIBase
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/user", nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "token "+token)
	resp, err := httpClient(g.HTTP).Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("github user lookup failed with status %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, resp.StatusCode, err
	}
	return out, resp.StatusCode, nil
}
