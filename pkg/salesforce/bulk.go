package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bturcanu/sfclause/pkg/types"
)

// DefaultBulkBatchSize is the number of records sent per Bulk API batch.
const DefaultBulkBatchSize = 10000

// BulkResult is the per-record outcome of a bulk insert.
type BulkResult struct {
	Success bool            `json:"success"`
	Created bool            `json:"created"`
	ID      string          `json:"id"`
	Errors  json.RawMessage `json:"errors"`
}

type bulkJob struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type bulkBatch struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	StateMessage string `json:"stateMessage"`
}

func (c *Client) bulkURL(path string) string {
	return c.instanceURL + "/services/async/" + c.cfg.APIVersion + "/job" + path
}

// BulkInsert loads records through a Bulk API 1.0 JSON job, one batch per
// batchSize records, and waits for every batch to finish. Results are
// returned in submission order.
func (c *Client) BulkInsert(ctx context.Context, objectType string, records []map[string]any, batchSize int) ([]BulkResult, error) {
	s, err := c.sobject(objectType)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = DefaultBulkBatchSize
	}
	if len(records) == 0 {
		return []BulkResult{}, nil
	}

	var job bulkJob
	_, err = c.do(ctx, request{
		method: http.MethodPost,
		url:    c.bulkURL(""),
		body:   map[string]string{"operation": "insert", "object": s.name, "contentType": "JSON"},
		bulk:   true,
	}, &job)
	if err != nil {
		return nil, fmt.Errorf("bulk create job: %w", err)
	}

	var batches []bulkBatch
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		var b bulkBatch
		_, err := c.do(ctx, request{
			method: http.MethodPost,
			url:    c.bulkURL("/" + job.ID + "/batch"),
			body:   records[start:end],
			bulk:   true,
		}, &b)
		if err != nil {
			_ = c.closeJob(ctx, job.ID)
			return nil, fmt.Errorf("bulk add batch: %w", err)
		}
		batches = append(batches, b)
	}

	if err := c.closeJob(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("bulk close job: %w", err)
	}

	var results []BulkResult
	for _, b := range batches {
		if err := c.waitBatch(ctx, job.ID, b.ID); err != nil {
			return nil, err
		}
		var part []BulkResult
		_, err := c.do(ctx, request{
			method: http.MethodGet,
			url:    c.bulkURL("/" + job.ID + "/batch/" + b.ID + "/result"),
			bulk:   true,
		}, &part)
		if err != nil {
			return nil, fmt.Errorf("bulk batch %s result: %w", b.ID, err)
		}
		results = append(results, part...)
	}
	return results, nil
}

func (c *Client) closeJob(ctx context.Context, jobID string) error {
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		url:    c.bulkURL("/" + jobID),
		body:   map[string]string{"state": "Closed"},
		bulk:   true,
	}, nil)
	return err
}

func (c *Client) waitBatch(ctx context.Context, jobID, batchID string) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("bulk batch %s: %w", batchID, ctx.Err())
		case <-timer.C:
		}

		var b bulkBatch
		_, err := c.do(ctx, request{
			method: http.MethodGet,
			url:    c.bulkURL("/" + jobID + "/batch/" + batchID),
			bulk:   true,
		}, &b)
		if err != nil {
			return fmt.Errorf("bulk batch %s status: %w", batchID, err)
		}
		switch b.State {
		case "Completed":
			return nil
		case "Failed", "Not Processed":
			return &types.ToolError{
				Kind:    types.KindRemote,
				Code:    "BULK_BATCH_FAILED",
				Message: fmt.Sprintf("bulk batch %s %s: %s", batchID, b.State, b.StateMessage),
			}
		}
		timer.Reset(c.cfg.BulkPollInterval)
	}
}
