// Package roblox talks to the group rank service and the public users API.
package roblox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"intake-bot/internal/common/config"
	apphttp "intake-bot/internal/common/http"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/retry"

	"github.com/redis/go-redis/v9"
)

const ranksCacheKey = "intake:roblox:ranks"

var (
	ErrServiceDisabled = errors.New("RANK_SERVICE_DISABLED")
	ErrUserNotFound    = errors.New("ROBLOX_USER_NOT_FOUND")
	ErrRoleNotFound    = errors.New("GROUP_ROLE_NOT_FOUND")
	ErrNoRankTarget    = errors.New("NO_RANK_TARGET")
)

// Role is one group role as listed by GET /ranks.
type Role struct {
	ID         *int64 `json:"id,omitempty"`
	Name       string `json:"name"`
	Rank       *int   `json:"rank,omitempty"`
	RankNumber *int   `json:"rankNumber,omitempty"`
}

// RankValue returns rank, falling back to rankNumber.
func (r Role) RankValue() (int, bool) {
	if r.Rank != nil {
		return *r.Rank, true
	}
	if r.RankNumber != nil {
		return *r.RankNumber, true
	}
	return 0, false
}

// RankTarget selects a group role by id or, failing that, by rank number.
type RankTarget struct {
	RoleID     *int64
	RankNumber *int
}

func (t RankTarget) Empty() bool {
	return t.RoleID == nil && t.RankNumber == nil
}

// TargetFor prefers the role id and falls back to the rank number.
func TargetFor(role Role) RankTarget {
	if role.ID != nil {
		return RankTarget{RoleID: role.ID}
	}
	if rank, ok := role.RankValue(); ok {
		return RankTarget{RankNumber: &rank}
	}
	return RankTarget{}
}

// User is the resolved external account.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Client struct {
	baseURL  string
	secret   string
	groupID  *int64
	usersURL string

	http       *apphttp.Client
	ensureHTTP *apphttp.Client
	cache      redis.Cmdable
	cacheTTL   time.Duration
	policy     retry.Policy
	logger     logger.Logger
}

func NewClient(cfg config.RankServiceConfig, cache redis.Cmdable, log logger.Logger) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secret:     cfg.Secret,
		usersURL:   cfg.UsersAPIURL,
		http:       apphttp.NewClient(config.GetDuration(cfg.Timeout)),
		ensureHTTP: apphttp.NewClient(config.GetDuration(cfg.EnsureTimeout)),
		cache:      cache,
		cacheTTL:   time.Duration(cfg.RanksCacheTTL) * time.Second,
		policy:     retry.DefaultPolicy,
		logger:     log.WithFields(map[string]interface{}{"component": "roblox"}),
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(cfg.GroupID), 10, 64); err == nil {
		c.groupID = &id
	}
	if c.usersURL == "" {
		c.usersURL = config.DefaultUsersAPIURL
	}
	return c
}

// WithPolicy overrides the retry policy used for every call.
func (c *Client) WithPolicy(p retry.Policy) *Client {
	c.policy = p
	return c
}

// Enabled reports whether the rank service is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.secret != ""
}

func (c *Client) headers() map[string]string {
	return map[string]string{"X-Secret-Key": c.secret}
}

// LookupUser resolves an exact username through the public users API.
func (c *Client) LookupUser(ctx context.Context, username string) (*User, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return nil, ErrUserNotFound
	}
	payload := map[string]interface{}{
		"usernames":          []string{name},
		"excludeBannedUsers": true,
	}

	return retry.Do(ctx, c.policy, func(ctx context.Context) (*User, error) {
		resp, err := c.http.JSON(ctx, http.MethodPost, c.usersURL, nil, payload)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("users lookup HTTP %d: %s", resp.StatusCode, string(resp.Body))
		}
		var out struct {
			Data []User `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return nil, retry.Permanent(fmt.Errorf("decode users lookup: %w", err))
		}
		if len(out.Data) == 0 {
			return nil, retry.Permanent(fmt.Errorf("%w: %s", ErrUserNotFound, name))
		}
		user := out.Data[0]
		if user.Name == "" {
			user.Name = name
		}
		return &user, nil
	})
}

// Ranks lists the group roles. Results are cached in Redis.
func (c *Client) Ranks(ctx context.Context) ([]Role, error) {
	if !c.Enabled() {
		return nil, ErrServiceDisabled
	}

	if roles, ok := c.cachedRanks(ctx); ok {
		return roles, nil
	}

	roles, err := retry.Do(ctx, c.policy, func(ctx context.Context) ([]Role, error) {
		resp, err := c.http.JSON(ctx, http.MethodGet, c.baseURL+"/ranks", c.headers(), nil)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, fmt.Errorf("/ranks HTTP %d: %s", resp.StatusCode, string(resp.Body))
		}
		var out struct {
			Roles []Role `json:"roles"`
		}
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return nil, retry.Permanent(fmt.Errorf("decode /ranks: %w", err))
		}
		return out.Roles, nil
	})
	if err != nil {
		return nil, err
	}

	c.storeRanks(ctx, roles)
	return roles, nil
}

func (c *Client) cachedRanks(ctx context.Context) ([]Role, bool) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return nil, false
	}
	data, err := c.cache.Get(ctx, ranksCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("ranks cache read failed", map[string]interface{}{"error": err})
		}
		return nil, false
	}
	var roles []Role
	if err := json.Unmarshal(data, &roles); err != nil {
		return nil, false
	}
	return roles, true
}

func (c *Client) storeRanks(ctx context.Context, roles []Role) {
	if c.cache == nil || c.cacheTTL <= 0 || len(roles) == 0 {
		return
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, ranksCacheKey, data, c.cacheTTL).Err(); err != nil {
		c.logger.Warn("ranks cache write failed", map[string]interface{}{"error": err})
	}
}

// FindRoleByName matches a role name case-insensitively.
func (c *Client) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrRoleNotFound
	}
	roles, err := c.Ranks(ctx)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if strings.EqualFold(role.Name, name) {
			r := role
			return &r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
}

// RoleNameByRank finds the role name for a rank number.
func (c *Client) RoleNameByRank(ctx context.Context, rank int) (string, bool) {
	roles, err := c.Ranks(ctx)
	if err != nil {
		return "", false
	}
	for _, role := range roles {
		if v, ok := role.RankValue(); ok && v == rank {
			name := strings.TrimSpace(role.Name)
			return name, name != ""
		}
	}
	return "", false
}

// AcceptJoin approves a pending join request.
func (c *Client) AcceptJoin(ctx context.Context, robloxID int64) error {
	return c.post(ctx, c.http, "/accept-join", c.body(robloxID, RankTarget{}))
}

// SetRank assigns the target role to an existing member.
func (c *Client) SetRank(ctx context.Context, robloxID int64, target RankTarget) error {
	if target.Empty() {
		return ErrNoRankTarget
	}
	return c.post(ctx, c.http, "/set-rank", c.body(robloxID, target))
}

// EnsureMemberAndRank accepts and ranks in one call.
func (c *Client) EnsureMemberAndRank(ctx context.Context, robloxID int64, target RankTarget) error {
	if target.Empty() {
		return ErrNoRankTarget
	}
	return c.post(ctx, c.ensureHTTP, "/ensure-member-and-rank", c.body(robloxID, target))
}

func (c *Client) body(robloxID int64, target RankTarget) map[string]interface{} {
	body := map[string]interface{}{"robloxId": robloxID}
	if target.RoleID != nil {
		body["roleId"] = *target.RoleID
	}
	if target.RankNumber != nil {
		body["rankNumber"] = *target.RankNumber
	}
	if c.groupID != nil {
		body["groupId"] = *c.groupID
	}
	return body
}

func (c *Client) post(ctx context.Context, hc *apphttp.Client, path string, body map[string]interface{}) error {
	if !c.Enabled() {
		return ErrServiceDisabled
	}
	return retry.CallWithPolicy(ctx, c.policy, func(ctx context.Context) error {
		resp, err := hc.JSON(ctx, http.MethodPost, c.baseURL+path, c.headers(), body)
		if err != nil {
			return err
		}
		if retry.IsIdempotentOutcome(resp.StatusCode, string(resp.Body)) {
			return nil
		}
		return fmt.Errorf("%s HTTP %d: %s", path, resp.StatusCode, string(resp.Body))
	})
}
