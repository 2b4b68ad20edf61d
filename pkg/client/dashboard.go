package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

const apiPrefix = "/api/v1"

func datasetPath(dataset string, rest ...string) string {
	p := apiPrefix + "/datasets/" + url.PathEscape(dataset)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func typesQuery(types []string) url.Values {
	q := url.Values{}
	for _, t := range types {
		q.Add("types", t)
	}
	return q
}

func limitQuery(q url.Values, limit int) url.Values {
	if q == nil {
		q = url.Values{}
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

// Board returns the aggregated board of dataset for the selected types.
// An empty selection means the server default.
func (c *Client) Board(ctx context.Context, dataset string, types []string) (*Board, error) {
	var out Board
	if err := c.get(ctx, datasetPath(dataset, "board"), typesQuery(types), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Cluster(ctx context.Context, dataset, cluster string, types []string) (*ClusterView, error) {
	var out ClusterView
	if err := c.get(ctx, datasetPath(dataset, "clusters", url.PathEscape(cluster)), typesQuery(types), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Region drills into one region of a cluster.
func (c *Client) Region(ctx context.Context, dataset, cluster, region string, types []string) (*RegionView, error) {
	var out RegionView
	path := datasetPath(dataset, "clusters", url.PathEscape(cluster), "regions", url.PathEscape(region))
	if err := c.get(ctx, path, typesQuery(types), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Types lists the distinct incident types present in dataset.
func (c *Client) Types(ctx context.Context, dataset string) ([]string, error) {
	var out []string
	if err := c.get(ctx, datasetPath(dataset, "types"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Trend(ctx context.Context, dataset, cluster string, limit int) ([]TrendPoint, error) {
	var out []TrendPoint
	path := datasetPath(dataset, "clusters", url.PathEscape(cluster), "trend")
	if err := c.get(ctx, path, limitQuery(nil, limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Snapshot(ctx context.Context) (*SnapshotInfo, error) {
	var out SnapshotInfo
	if err := c.get(ctx, apiPrefix+"/snapshot", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) History(ctx context.Context, limit int) ([]SnapshotSummary, error) {
	var out []SnapshotSummary
	if err := c.get(ctx, apiPrefix+"/history", limitQuery(nil, limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Transitions lists recent critical transitions, newest first. No datasets
// means all of them.
func (c *Client) Transitions(ctx context.Context, datasets []string, limit int) ([]Transition, error) {
	q := url.Values{}
	if len(datasets) > 0 {
		q.Set("datasets", strings.Join(datasets, ","))
	}
	var out []Transition
	if err := c.get(ctx, apiPrefix+"/transitions", limitQuery(q, limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Refresh asks the server to fetch the feed now. It is never retried.
func (c *Client) Refresh(ctx context.Context) (*RefreshResult, error) {
	var out RefreshResult
	if err := c.post(ctx, apiPrefix+"/refresh", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
