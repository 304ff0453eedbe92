package oauth

import (
	"context"
	"log"
	"net/http"
	"net/url"

	"github.com/akhatua2/designx/pkg/extapi"
)

const defaultSlackTokenURL = "https://slack.com/api/oauth.v2.access"

type Slack struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TokenURL     string
	HTTP         *http.Client
}

func (s *Slack) Exchange(ctx context.Context, code string) (extapi.SlackTokenResponse, error) {
	if s.ClientID == "" || s.ClientSecret == "" {
		return extapi.SlackTokenResponse{}, ErrNotConfigured
	}
	log.Printf("provider=slack: exchanging authorization code (length=%d)", len(code))

	endpoint := s.TokenURL
	if endpoint == "" {
		endpoint = defaultSlackTokenURL
	}
	form := url.Values{
		"client_id":     {s.ClientID},
		"client_secret": {s.ClientSecret},
		"code":          {code},
	}
	if s.RedirectURI != "" {
		form.Set("redirect_uri", s.RedirectURI)
	}
	data, status, err := postForm(ctx, httpClient(s.HTTP), endpoint, form, "application/json")
	if err != nil {
		return extapi.SlackTokenResponse{}, err
	}
	// Slack reports failure in the body with HTTP 200, so the ok flag is
	// authoritative, not the status code.
	if ok, _ := data["ok"].(bool); !ok {
		return extapi.SlackTokenResponse{}, &ExchangeError{Provider: "slack", Reason: providerErrorReason(data, status)}
	}
	token := stringField(data, "access_token")
	if token == "" {
		return extapi.SlackTokenResponse{}, &ExchangeError{Provider: "slack", Reason: "no access token in response"}
	}
	out := extapi.SlackTokenResponse{AccessToken: token}
	if team, ok := data["team"].(map[string]any); ok {
		out.Team = team
	}
	if user, ok := data["authed_user"].(map[string]any); ok {
		out.AuthedUser = user
	}
	log.Printf("provider=slack: token exchange successful")
	return out, nil
}
