package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	cacheport "chatwire/internal/infrastructure/cache/port"
	"chatwire/internal/pkg/chat/clients/port"
)

// UserHTTPClient implements port.UserService against the user-profile REST
// API. Role and profile lookups are memoized through the cache port, the
// same way the upstream service is shielded in the rest of the platform.
type UserHTTPClient struct {
	base        string
	publicPath  string
	http        *http.Client
	cache       cacheport.Cache
	rolesTTL    time.Duration
	profilesTTL time.Duration
	log         *logrus.Entry
}

func NewUserHTTPClient(base, publicPath string, cache cacheport.Cache, rolesTTL, profilesTTL time.Duration, log *logrus.Entry) *UserHTTPClient {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &UserHTTPClient{
		base:        strings.TrimRight(base, "/"),
		publicPath:  publicPath,
		http:        &http.Client{Timeout: 5 * time.Second},
		cache:       cache,
		rolesTTL:    rolesTTL,
		profilesTTL: profilesTTL,
		log:         log,
	}
}

var _ port.UserService = (*UserHTTPClient)(nil)

// MyRoles returns the caller's identity with roles normalized to upper case.
func (c *UserHTTPClient) MyRoles(ctx context.Context, bearer string) (*port.Identity, error) {
	key := fmt.Sprintf("chat:roles:%d", hashToken(bearer))

	var identity port.Identity
	if c.cachedGet(ctx, key, &identity) {
		return &identity, nil
	}

	if err := c.getJSON(ctx, c.base+"/my-roles", bearer, &identity); err != nil {
		return nil, fmt.Errorf("users: my-roles: %w", err)
	}
	for i, r := range identity.Roles {
		identity.Roles[i] = strings.ToUpper(r)
	}
	c.cachedSet(ctx, key, identity, c.rolesTTL)
	return &identity, nil
}

// PublicProfileByID fetches a profile by user id. A missing profile is not
// an error for callers that can render a placeholder, so lookups that fail
// return nil with the error logged.
func (c *UserHTTPClient) PublicProfileByID(ctx context.Context, id string) (*port.PublicProfile, error) {
	return c.publicProfile(ctx, "chat:profile:id:"+id, fmt.Sprintf("%s%s/by-id/%s", c.base, c.publicPath, url.PathEscape(id)))
}

// PublicProfileBySub fetches a profile by token subject.
func (c *UserHTTPClient) PublicProfileBySub(ctx context.Context, sub string) (*port.PublicProfile, error) {
	return c.publicProfile(ctx, "chat:profile:sub:"+sub, fmt.Sprintf("%s%s/%s", c.base, c.publicPath, url.PathEscape(sub)))
}

func (c *UserHTTPClient) publicProfile(ctx context.Context, key, endpoint string) (*port.PublicProfile, error) {
	var profile port.PublicProfile
	if c.cachedGet(ctx, key, &profile) {
		return &profile, nil
	}

	if err := c.getJSON(ctx, endpoint, "", &profile); err != nil {
		c.log.WithError(err).Warn("users: public profile lookup failed")
		return nil, err
	}
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	c.cachedSet(ctx, key, profile, c.profilesTTL)
	return &profile, nil
}

func (c *UserHTTPClient) cachedGet(ctx context.Context, key string, out any) bool {
	if c.cache == nil {
		return false
	}
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

func (c *UserHTTPClient) cachedSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, string(raw), ttl); err != nil {
		c.log.WithError(err).Debug("users: cache set failed")
	}
}

func (c *UserHTTPClient) getJSON(ctx context.Context, endpoint, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("users: %s returned %d", endpoint, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func hashToken(bearer string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(bearer))
	return h.Sum64()
}
