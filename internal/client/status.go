package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// GoodStatuses are the processing states whose outputs are ready for
// download. Anything else is pending or failed on the service side.
var GoodStatuses = []string{"Unreleased", "Released"}

// StatusRecord is one sample's processing state as reported by the service.
type StatusRecord struct {
	Sample string `json:"sample"`
	Status string `json:"status"`
}

type sampleDetail struct {
	Status string `json:"status"`
}

// SampleStatus fetches the processing state of one sample. An invalid token
// aborts; any other HTTP error degrades to status "Unknown" so one missing
// sample does not sink a whole batch query.
func (c *Client) SampleStatus(ctx context.Context, guid string) (StatusRecord, error) {
	var details []sampleDetail
	err := c.getJSON(ctx, "fetching status of "+guid, c.endpoints.API+"/get_sample_detail/"+guid, &details)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusUnauthorized {
				return StatusRecord{}, fmt.Errorf("authorisation failed (HTTP %d), invalid token?", apiErr.StatusCode)
			}
			c.logger.Warn("could not fetch sample status", "sample", guid, "status_code", apiErr.StatusCode)
			return StatusRecord{Sample: guid, Status: "Unknown"}, nil
		}
		return StatusRecord{}, err
	}
	if len(details) == 0 {
		c.logger.Warn("empty status response", "sample", guid)
		return StatusRecord{Sample: guid, Status: "Unknown"}, nil
	}
	return StatusRecord{Sample: guid, Status: details[0].Status}, nil
}

// Statuses fetches the state of many samples concurrently. Results keep the
// order of guids regardless of completion order.
func (c *Client) Statuses(ctx context.Context, guids []string) ([]StatusRecord, error) {
	records := make([]StatusRecord, len(guids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for i, guid := range guids {
		g.Go(func() error {
			record, err := c.SampleStatus(ctx, guid)
			if err != nil {
				return err
			}
			records[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
