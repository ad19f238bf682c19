package hubsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const dealsPath = "crm/" + apiVersion + "/objects/deals"

// ListDealsOptions controls a single page request of ListDeals.
type ListDealsOptions struct {
	// Limit is the page size, capped at 100.
	Limit int
	// After is the pagination cursor from the previous page.
	After string
	// PipelineID filters results to one pipeline. Empty means all.
	PipelineID string
}

// GetDeal retrieves a single deal by id with all AMANDA properties.
func (c *Client) GetDeal(ctx context.Context, dealID string) (*Deal, error) {
	query := url.Values{"properties": {strings.Join(dealPropertyNames, ",")}}
	body, err := c.Request(ctx, "GET", dealsPath+"/"+dealID, nil, query)
	if err != nil {
		return nil, err
	}
	return DealFromResponse(body)
}

// ListDeals retrieves one page of deals. It returns the page and the
// cursor for the next page; an empty cursor means the listing is complete.
func (c *Client) ListDeals(ctx context.Context, opts ListDealsOptions) ([]*Deal, string, error) {
	limit := opts.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	query := url.Values{
		"limit":      {strconv.Itoa(limit)},
		"properties": {strings.Join(dealPropertyNames, ",")},
	}
	if opts.After != "" {
		query.Set("after", opts.After)
	}

	body, err := c.Request(ctx, "GET", dealsPath, nil, query)
	if err != nil {
		return nil, "", err
	}

	var page listResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", &ValidationError{Message: "malformed list response: " + err.Error()}
	}

	deals := make([]*Deal, 0, len(page.Results))
	for i := range page.Results {
		deal := dealFromObject(&page.Results[i])
		if opts.PipelineID != "" && deal.Pipeline != opts.PipelineID {
			continue
		}
		deals = append(deals, deal)
	}

	return deals, page.Paging.Next.After, nil
}

// CreateDeal creates a new deal and returns it with its assigned id.
func (c *Client) CreateDeal(ctx context.Context, deal *Deal) (*Deal, error) {
	body, err := c.Request(ctx, "POST", dealsPath,
		map[string]any{"properties": DealProperties(deal)}, nil)
	if err != nil {
		return nil, err
	}
	return DealFromResponse(body)
}

// UpdateDeal applies a deal's properties to an existing remote object.
func (c *Client) UpdateDeal(ctx context.Context, dealID string, deal *Deal) (*Deal, error) {
	body, err := c.Request(ctx, "PATCH", dealsPath+"/"+dealID,
		map[string]any{"properties": DealProperties(deal)}, nil)
	if err != nil {
		return nil, err
	}
	return DealFromResponse(body)
}

// DeleteDeal archives a deal.
func (c *Client) DeleteDeal(ctx context.Context, dealID string) error {
	_, err := c.Request(ctx, "DELETE", dealsPath+"/"+dealID, nil, nil)
	return err
}

// BatchReadDeals retrieves multiple deals in a single request, chunking at
// the API's batch limit.
func (c *Client) BatchReadDeals(ctx context.Context, dealIDs []string) ([]*Deal, error) {
	deals := make([]*Deal, 0, len(dealIDs))

	for start := 0; start < len(dealIDs); start += maxBatchSize {
		end := min(start+maxBatchSize, len(dealIDs))

		inputs := make([]map[string]string, 0, end-start)
		for _, id := range dealIDs[start:end] {
			inputs = append(inputs, map[string]string{"id": id})
		}

		body, err := c.Request(ctx, "POST", dealsPath+"/batch/read", map[string]any{
			"inputs":     inputs,
			"properties": dealPropertyNames,
		}, nil)
		if err != nil {
			return nil, err
		}

		var page listResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, &ValidationError{Message: "malformed batch response: " + err.Error()}
		}
		for i := range page.Results {
			deals = append(deals, dealFromObject(&page.Results[i]))
		}
	}

	return deals, nil
}

// DealUpdate pairs a remote deal id with the properties to apply.
type DealUpdate struct {
	ID   string
	Deal *Deal
}

// BatchUpdateDeals updates multiple deals, chunked at the API's batch
// limit of 100. A failed chunk does not block subsequent chunks; partial
// success is reflected in the returned SyncResult.
func (c *Client) BatchUpdateDeals(ctx context.Context, updates []DealUpdate) *SyncResult {
	result := &SyncResult{Success: true, Timestamp: time.Now().UTC()}

	for start := 0; start < len(updates); start += maxBatchSize {
		end := min(start+maxBatchSize, len(updates))
		chunk := updates[start:end]

		inputs := make([]map[string]any, 0, len(chunk))
		for _, u := range chunk {
			inputs = append(inputs, map[string]any{
				"id":         u.ID,
				"properties": DealProperties(u.Deal),
			})
		}

		body, err := c.Request(ctx, "POST", dealsPath+"/batch/update",
			map[string]any{"inputs": inputs}, nil)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("batch %d-%d: %v", start, end-1, err))
			result.DealsFailed += len(chunk)
			continue
		}

		var page listResponse
		if err := json.Unmarshal(body, &page); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("batch %d-%d: malformed response: %v", start, end-1, err))
			result.DealsFailed += len(chunk)
			continue
		}
		result.DealsUpdated += len(page.Results)
	}

	result.DealsSynced = result.DealsUpdated
	result.Success = result.DealsFailed == 0
	return result
}

// AccountInfo fetches portal details for the connected account, used as a
// connection test.
func (c *Client) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	body, err := c.Request(ctx, "GET", "integrations/v1/me", nil, nil)
	if err != nil {
		return nil, err
	}
	var info AccountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &ValidationError{Message: "malformed account response: " + err.Error()}
	}
	return &info, nil
}
