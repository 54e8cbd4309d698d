package wikidata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"HeritageAtlas/internal/config"
	"HeritageAtlas/pkg/httpclient"
	"HeritageAtlas/pkg/logger"
)

// Client talks to the wikibase REST API: entity statements, labels and
// name search. It owns the shared bearer credential for the process and
// refreshes it lazily when expired.
type Client struct {
	http *httpclient.Client
	cfg  config.WikidataConfig
	log  *logger.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewClient creates an entity client. All authenticated upstream callers
// share this one instance so the credential cache is shared too.
func NewClient(httpClient *httpclient.Client, cfg config.WikidataConfig) *Client {
	return &Client{
		http: httpClient,
		cfg:  cfg,
		log:  logger.New("wikidata"),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// fetchToken returns the cached bearer token while it is still valid,
// otherwise performs a client-credentials exchange. The exchange runs
// outside the lock: two callers racing past an expired token both refresh,
// which wastes one exchange but never hands out a stale credential.
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.expiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/oauth2/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tr tokenResponse
	if err := c.http.DoJSON(req, &tr); err != nil {
		return "", &AuthError{Err: err}
	}
	if tr.AccessToken == "" {
		return "", &AuthError{Err: fmt.Errorf("empty access token in exchange response")}
	}

	c.mu.Lock()
	c.token = tr.AccessToken
	c.expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	c.mu.Unlock()

	return tr.AccessToken, nil
}

// authorizedGet issues a bearer-authenticated GET and decodes the response.
func (c *Client) authorizedGet(ctx context.Context, path string, out interface{}) error {
	token, err := c.fetchToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	return c.http.DoJSON(req, out)
}

// Statements fetches the full statement set of an entity.
func (c *Client) Statements(ctx context.Context, entityID string) (*StatementSet, error) {
	set := NewStatementSet()
	path := fmt.Sprintf("/wikibase/v1/entities/items/%s/statements", url.PathEscape(entityID))
	if err := c.authorizedGet(ctx, path, set); err != nil {
		if _, ok := err.(*AuthError); ok {
			return nil, err
		}
		status := 0
		if se, ok := err.(*httpclient.StatusError); ok {
			status = se.Status
		}
		return nil, &UpstreamEntityError{EntityID: entityID, Status: status, Err: err}
	}
	return set, nil
}

// Name resolves an entity's display label: configured language first, then
// English, then any available language (smallest code, so the fallback is
// deterministic). A missing label is an empty string, not an error; a
// missing entity reads the same way.
func (c *Client) Name(ctx context.Context, entityID string) (string, error) {
	var labels map[string]string
	path := fmt.Sprintf("/wikibase/v1/entities/items/%s/labels", url.PathEscape(entityID))
	if err := c.authorizedGet(ctx, path, &labels); err != nil {
		if _, ok := err.(*AuthError); ok {
			return "", err
		}
		if se, ok := err.(*httpclient.StatusError); ok && se.Status == http.StatusNotFound {
			return "", nil
		}
		status := 0
		if se, ok := err.(*httpclient.StatusError); ok {
			status = se.Status
		}
		return "", &UpstreamEntityError{EntityID: entityID, Status: status, Err: err}
	}

	if label, ok := labels[c.cfg.Language]; ok && label != "" {
		return label, nil
	}
	if label, ok := labels["en"]; ok && label != "" {
		return label, nil
	}

	langs := make([]string, 0, len(labels))
	for lang := range labels {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if labels[lang] != "" {
			return labels[lang], nil
		}
	}
	return "", nil
}

type searchResponse struct {
	Search []struct {
		ID string `json:"id"`
	} `json:"search"`
}

// SearchByName resolves an entity id from a display name via the search
// API, returning ErrNotFound when nothing matches.
func (c *Client) SearchByName(ctx context.Context, name string) (string, error) {
	apiBase := strings.TrimSuffix(c.cfg.BaseURL, "/rest.php") + "/api.php"
	params := url.Values{
		"action":   {"wbsearchentities"},
		"search":   {name},
		"language": {c.cfg.Language},
		"format":   {"json"},
		"limit":    {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	var sr searchResponse
	if err := c.http.DoJSON(req, &sr); err != nil {
		return "", fmt.Errorf("entity search failed for %q: %w", name, err)
	}
	if len(sr.Search) == 0 {
		return "", ErrNotFound
	}
	return sr.Search[0].ID, nil
}
