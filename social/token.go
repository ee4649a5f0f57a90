package social

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// PageToken is a long-lived page access token.
type PageToken struct {
	PageID       string        `json:"pageId"`
	PageName     string        `json:"pageName"`
	AccessToken  string        `json:"accessToken"`
	UserTokenTTL time.Duration `json:"userTokenTtl"` // Zero when Facebook did not report one
}

// ExchangePageToken trades a short-lived user token for a long-lived one and
// returns the page token of the configured page.
func (p *Poster) ExchangePageToken(ctx context.Context, appID, appSecret, shortUserToken string) (*PageToken, error) {
	if appID == "" || appSecret == "" || shortUserToken == "" {
		return nil, errors.New("app id, app secret and a short-lived user token are required")
	}

	var exchanged struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	err := p.do(ctx, http.MethodGet, "oauth/access_token", url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {appID},
		"client_secret":     {appSecret},
		"fb_exchange_token": {shortUserToken},
	}, &exchanged)
	if err != nil {
		return nil, fmt.Errorf("exchange user token: %w", err)
	}
	if exchanged.AccessToken == "" {
		return nil, errors.New("no access_token in /oauth/access_token response")
	}

	var accounts struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := p.do(ctx, http.MethodGet, "me/accounts", url.Values{"access_token": {exchanged.AccessToken}}, &accounts); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	for _, page := range accounts.Data {
		if page.ID == p.opts.PageID {
			p.logger.Info("Obtained long-lived page token", "page_id", page.ID, "page_name", page.Name)
			return &PageToken{
				PageID:       page.ID,
				PageName:     page.Name,
				AccessToken:  page.AccessToken,
				UserTokenTTL: time.Duration(exchanged.ExpiresIn) * time.Second,
			}, nil
		}
	}
	return nil, fmt.Errorf("page %s not found among %d pages of this user", p.opts.PageID, len(accounts.Data))
}
