package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/odvcencio/songlist/internal/models"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// Profile is the identity an external provider vouches for.
type Profile struct {
	ProviderID string
	Name       string
	Email      string
	AvatarURL  string
}

// User converts the profile into the user record upserted on login.
func (p *Profile) User(provider string) *models.User {
	u := &models.User{
		Name:       p.Name,
		Provider:   provider,
		ProviderID: p.ProviderID,
	}
	if p.Email != "" {
		email := p.Email
		u.Email = &email
	}
	if p.AvatarURL != "" {
		avatar := p.AvatarURL
		u.AvatarURL = &avatar
	}
	return u
}

// Provider runs the authorization code flow against one identity provider.
type Provider struct {
	name    string
	config  *oauth2.Config
	apiBase string
	profile func(ctx context.Context, p *Provider, client *http.Client) (*Profile, error)
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		name: ProviderGoogle,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
		apiBase: "https://www.googleapis.com",
		profile: googleProfile,
	}
}

func NewGitHubProvider(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		name: ProviderGitHub,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: "https://api.github.com",
		profile: githubProfile,
	}
}

// WithEndpoints points the provider at another deployment, such as GitHub
// Enterprise. apiBase is the root the profile endpoints are resolved against.
func (p *Provider) WithEndpoints(authURL, tokenURL, apiBase string) *Provider {
	p.config.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
	p.apiBase = strings.TrimRight(apiBase, "/")
	return p
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token and fetches the profile
// it grants access to.
func (p *Provider) Exchange(ctx context.Context, code string) (*Profile, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s token exchange: %w", p.name, err)
	}
	profile, err := p.profile(ctx, p, p.config.Client(ctx, tok))
	if err != nil {
		return nil, fmt.Errorf("%s profile: %w", p.name, err)
	}
	if profile.ProviderID == "" {
		return nil, fmt.Errorf("%s profile: missing subject", p.name)
	}
	if profile.Name == "" {
		profile.Name = profile.Email
	}
	return profile, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func googleProfile(ctx context.Context, p *Provider, client *http.Client) (*Profile, error) {
	var info struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := getJSON(ctx, client, p.apiBase+"/oauth2/v3/userinfo", &info); err != nil {
		return nil, err
	}
	return &Profile{ProviderID: info.Sub, Name: info.Name, Email: info.Email, AvatarURL: info.Picture}, nil
}

func githubProfile(ctx context.Context, p *Provider, client *http.Client) (*Profile, error) {
	var user struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, p.apiBase+"/user", &user); err != nil {
		return nil, err
	}
	profile := &Profile{
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
	}
	if user.ID != 0 {
		profile.ProviderID = strconv.FormatInt(user.ID, 10)
	}
	if profile.Name == "" {
		profile.Name = user.Login
	}
	if profile.Email == "" {
		// Private emails are only listed by the emails endpoint.
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, p.apiBase+"/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					profile.Email = e.Email
					break
				}
			}
		}
	}
	return profile, nil
}
