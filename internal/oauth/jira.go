package oauth

import (
	"context"
	"log"
	"net/http"
	"net/url"

	"github.com/akhatua2/designx/pkg/extapi"
)

const defaultJiraTokenURL = "https://auth.atlassian.com/oauth/token"

type Jira struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TokenURL     string
	HTTP         *http.Client
}

func (j *Jira) Exchange(ctx context.Context, code string) (extapi.JiraTokenResponse, error) {
	if j.ClientID == "" || j.ClientSecret == "" {
		return extapi.JiraTokenResponse{}, ErrNotConfigured
	}
	log.Printf("provider=jira: exchanging authorization code (length=%d)", len(code))

	endpoint := j.TokenURL
	if endpoint == "" {
		endpoint = defaultJiraTokenURL
	}
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {j.ClientID},
		"client_secret": {j.ClientSecret},
		"code":          {code},
		"redirect_uri":  {j.RedirectURI},
	}
	data, status, err := postForm(ctx, httpClient(j.HTTP), endpoint, form, "application/json")
	if err != nil {
		return extapi.JiraTokenResponse{}, err
	}
	if status != http.StatusOK || stringField(data, "error") != "" {
		return extapi.JiraTokenResponse{}, &ExchangeError{Provider: "jira", Reason: providerErrorReason(data, status)}
	}
	token := stringField(data, "access_token")
	if token == "" {
		return extapi.JiraTokenResponse{}, &ExchangeError{Provider: "jira", Reason: "no access token in response"}
	}
	log.Printf("provider=jira: token exchange successful")
	return extapi.JiraTokenResponse{
		AccessToken:  token,
		RefreshToken: stringField(data, "refresh_token"),
		TokenType:    stringField(data, "token_type"),
		Scope:        stringField(data, "scope"),
	}, nil
}
