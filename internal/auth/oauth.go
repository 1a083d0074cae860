package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"pennywise/internal/core"
)

const (
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	githubUserURL     = "https://api.github.com/user"
)

// ProviderConfig configures one OAuth provider. Endpoint and ProfileURL
// default to the provider's public endpoints when empty.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	ProfileURL   string
}

type profile struct {
	Email    string
	FullName string
}

type oauthProvider struct {
	name       string
	config     *oauth2.Config
	profileURL string
	fetch      func(ctx context.Context, client *http.Client, profileURL string) (profile, error)
}

func newOAuthProvider(name string, pc ProviderConfig, redirectURL string) (*oauthProvider, error) {
	p := &oauthProvider{
		name: name,
		config: &oauth2.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     pc.Endpoint,
		},
		profileURL: pc.ProfileURL,
	}

	switch name {
	case core.ProviderGoogle:
		if p.config.Endpoint.AuthURL == "" {
			p.config.Endpoint = google.Endpoint
		}
		if p.profileURL == "" {
			p.profileURL = googleUserInfoURL
		}
		p.config.Scopes = []string{"openid", "email", "profile"}
		p.fetch = fetchGoogleProfile
	case core.ProviderGitHub:
		if p.config.Endpoint.AuthURL == "" {
			p.config.Endpoint = github.Endpoint
		}
		if p.profileURL == "" {
			p.profileURL = githubUserURL
		}
		p.config.Scopes = []string{"read:user", "user:email"}
		p.fetch = fetchGitHubProfile
	default:
		return nil, fmt.Errorf("unknown oauth provider %q", name)
	}
	return p, nil
}

func fetchGoogleProfile(ctx context.Context, client *http.Client, profileURL string) (profile, error) {
	var body struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := getJSON(ctx, client, profileURL, &body); err != nil {
		return profile{}, err
	}
	if !body.EmailVerified {
		return profile{}, fmt.Errorf("google account email %q is not verified", body.Email)
	}
	return profile{Email: body.Email, FullName: body.Name}, nil
}

func fetchGitHubProfile(ctx context.Context, client *http.Client, profileURL string) (profile, error) {
	var user struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Login string `json:"login"`
	}
	if err := getJSON(ctx, client, profileURL, &user); err != nil {
		return profile{}, err
	}
	p := profile{Email: user.Email, FullName: user.Name}
	if p.FullName == "" {
		p.FullName = user.Login
	}
	if p.Email != "" {
		return p, nil
	}

	// Private emails are only listed on the emails endpoint.
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, strings.TrimRight(profileURL, "/")+"/emails", &emails); err != nil {
		return profile{}, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			p.Email = e.Email
			return p, nil
		}
	}
	return profile{}, fmt.Errorf("github account has no verified primary email")
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch profile: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}
	return nil
}
