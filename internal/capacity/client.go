// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

// Package capacity is a client for the Spot Fleet capacity API: request
// groups, placement scores, instance pools, spot prices and interruption
// rates.
package capacity

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/l5-scheduler/l5/internal/secrets"
	"github.com/l5-scheduler/l5/internal/upstream"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
)

// DefaultBaseURL is the public deployment of the capacity API.
const DefaultBaseURL = "https://206zjclkvi.execute-api.eu-west-1.amazonaws.com/v1"

// APIKeyHeader carries the optional API key.
const APIKeyHeader = "x-api-key"

const (
	defaultOrder = "desc"
	defaultLimit = 500
)

// Client calls the capacity API. The API key is read from the credential
// source on every call so a newly saved key takes effect immediately.
type Client struct {
	http    *upstream.Client
	baseURL string
	creds   secrets.CredentialSource
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL and a
// nil creds sends no API key.
func NewClient(http *upstream.Client, baseURL string, creds secrets.CredentialSource) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: http, baseURL: strings.TrimRight(baseURL, "/"), creds: creds}
}

// HistoryQuery filters the history endpoints. Zero fields are omitted;
// Order defaults to "desc" and Limit to 500.
type HistoryQuery struct {
	Since          time.Time
	Until          time.Time
	AZ             string
	TargetCapacity *int
	PoolID         *int64
	InstanceType   string
	Region         string
	Order          string
	Limit          int
}

func (q HistoryQuery) values() url.Values {
	v := url.Values{}
	order := q.Order
	if order == "" {
		order = defaultOrder
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	v.Set("order", order)
	v.Set("limit", strconv.Itoa(limit))
	setLatestFilters(v, q.AZ, q.TargetCapacity)
	if !q.Since.IsZero() {
		v.Set("since", q.Since.UTC().Format(time.RFC3339))
	}
	if !q.Until.IsZero() {
		v.Set("until", q.Until.UTC().Format(time.RFC3339))
	}
	if q.PoolID != nil {
		v.Set("pool_id", strconv.FormatInt(*q.PoolID, 10))
	}
	if q.InstanceType != "" {
		v.Set("instance_type", q.InstanceType)
	}
	if q.Region != "" {
		v.Set("region", q.Region)
	}
	return v
}

func setLatestFilters(v url.Values, az string, targetCapacity *int) {
	if az != "" {
		v.Set("az", az)
	}
	if targetCapacity != nil {
		v.Set("target_capacity", strconv.Itoa(*targetCapacity))
	}
}

// ListRequestGroups lists every request group.
func (c *Client) ListRequestGroups(ctx context.Context) ([]RequestGroup, error) {
	var out []RequestGroup
	return out, c.get(ctx, "/request-groups", nil, &out)
}

// GetRequestGroup fetches a request group by ID or name.
func (c *Client) GetRequestGroup(ctx context.Context, idOrName string) (RequestGroup, error) {
	var out RequestGroup
	return out, c.get(ctx, "/request-groups/"+url.PathEscape(idOrName), nil, &out)
}

// LatestPlacementScores returns the newest score per AZ and capacity pair.
func (c *Client) LatestPlacementScores(ctx context.Context, groupID string, az string, targetCapacity *int) ([]PlacementScore, error) {
	q := url.Values{}
	setLatestFilters(q, az, targetCapacity)
	var out []PlacementScore
	return out, c.get(ctx, "/request-groups/"+url.PathEscape(groupID)+"/placement-scores/latest", q, &out)
}

// PlacementScores returns score history for a request group.
func (c *Client) PlacementScores(ctx context.Context, groupID string, q HistoryQuery) ([]PlacementScore, error) {
	var out []PlacementScore
	return out, c.get(ctx, "/request-groups/"+url.PathEscape(groupID)+"/placement-scores", q.values(), &out)
}

// ListPools lists every instance pool.
func (c *Client) ListPools(ctx context.Context) ([]InstancePool, error) {
	var out []InstancePool
	return out, c.get(ctx, "/pools", nil, &out)
}

// GetPool fetches one pool.
func (c *Client) GetPool(ctx context.Context, poolID int64) (InstancePool, error) {
	var out InstancePool
	return out, c.get(ctx, poolPath(poolID, ""), nil, &out)
}

// SpotPrices returns price history across pools.
func (c *Client) SpotPrices(ctx context.Context, q HistoryQuery) ([]SpotPrice, error) {
	var out []SpotPrice
	return out, c.get(ctx, "/spot-prices", q.values(), &out)
}

// PoolSpotPrices returns price history for one pool.
func (c *Client) PoolSpotPrices(ctx context.Context, poolID int64, q HistoryQuery) ([]SpotPrice, error) {
	var out []SpotPrice
	return out, c.get(ctx, poolPath(poolID, "/spot-prices"), q.values(), &out)
}

// LatestSpotPrice returns the newest price for one pool.
func (c *Client) LatestSpotPrice(ctx context.Context, poolID int64) (SpotPrice, error) {
	var out SpotPrice
	return out, c.get(ctx, poolPath(poolID, "/spot-prices/latest"), nil, &out)
}

// InterruptionRates returns interruption history across pools.
func (c *Client) InterruptionRates(ctx context.Context, q HistoryQuery) ([]InterruptionRate, error) {
	var out []InterruptionRate
	return out, c.get(ctx, "/interruption-rates", q.values(), &out)
}

// PoolInterruptionRates returns interruption history for one pool.
func (c *Client) PoolInterruptionRates(ctx context.Context, poolID int64, q HistoryQuery) ([]InterruptionRate, error) {
	var out []InterruptionRate
	return out, c.get(ctx, poolPath(poolID, "/interruption-rates"), q.values(), &out)
}

// LatestTimestamp reports how current the capacity feed is: the newest
// measured_at among the latest placement scores of the first request group.
func (c *Client) LatestTimestamp(ctx context.Context) (time.Time, error) {
	groups, err := c.ListRequestGroups(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if len(groups) == 0 {
		return time.Time{}, l5err.New(l5err.CodeCapacityGroupsNotFound, "capacity API returned no request groups")
	}

	scores, err := c.LatestPlacementScores(ctx, strconv.FormatInt(groups[0].ID, 10), "", nil)
	if err != nil {
		return time.Time{}, err
	}

	var latest time.Time
	for _, s := range scores {
		if s.MeasuredAt.After(latest) {
			latest = s.MeasuredAt.Time
		}
	}
	if latest.IsZero() {
		return time.Time{}, l5err.New(l5err.CodeCapacityScoresNotFound, "no placement scores for request group",
			l5err.Field("request_group_id", groups[0].ID))
	}
	return latest, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest any) error {
	opts := []upstream.RequestOption{upstream.WithQuery(query)}
	if c.creds != nil {
		creds, err := c.creds.Credentials(ctx)
		if err != nil {
			return err
		}
		opts = append(opts, upstream.WithHeader(APIKeyHeader, creds.SpotFleetAPIKey))
	}
	return c.http.GetJSON(ctx, c.baseURL+path, dest, opts...)
}

func poolPath(poolID int64, suffix string) string {
	return "/pools/" + strconv.FormatInt(poolID, 10) + suffix
}
