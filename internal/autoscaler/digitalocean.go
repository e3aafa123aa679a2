// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package autoscaler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/easyctf/judge-coordinator/internal/idgen"
	"github.com/easyctf/judge-coordinator/pkg/logging"
	"github.com/easyctf/judge-coordinator/pkg/pool"
	"github.com/easyctf/judge-coordinator/pkg/retry"
)

const (
	digitalOceanBaseURL = "https://api.digitalocean.com/v2"
	juryTag             = "jury"
	juryRegion          = "sfo2"
	jurySize            = "s-2vcpu-4gb"
	juryImage           = "docker-20-04"
)

// DigitalOcean is the Cloud provisioning backend (spec §4.3, §11: no
// DigitalOcean SDK exists anywhere in the reference corpus, so this is a
// hand-rolled REST client, built on the same request/retry idiom the
// donor client uses for its own outbound calls).
type DigitalOcean struct {
	token      string
	judgeURL   string
	keys       KeyIssuer
	httpClient *http.Client
	retry      retry.Policy
	logger     logging.Logger
}

// NewDigitalOcean builds a Cloud backed by the DigitalOcean droplets API.
func NewDigitalOcean(token, judgeURL string, keys KeyIssuer, logger logging.Logger) *DigitalOcean {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	clientPool := pool.NewHTTPClientPool(pool.DefaultPoolConfig(), logger)
	return &DigitalOcean{
		token:      token,
		judgeURL:   judgeURL,
		keys:       keys,
		httpClient: clientPool.GetClient("digitalocean"),
		retry:      retry.NewHTTPExponentialBackoff().WithMaxRetries(3),
		logger:     logger,
	}
}

type dropletSummary struct {
	ID int64 `json:"id"`
}

type dropletListResponse struct {
	Droplets []dropletSummary `json:"droplets"`
}

type createDropletRequest struct {
	Name     string   `json:"name"`
	Region   string   `json:"region"`
	Size     string   `json:"size"`
	Image    string   `json:"image"`
	Tags     []string `json:"tags"`
	UserData string   `json:"user_data"`
}

// CurrentCount lists every droplet tagged "jury" and returns the count.
func (d *DigitalOcean) CurrentCount(ctx context.Context) (int, error) {
	droplets, err := d.listJuries(ctx)
	if err != nil {
		return 0, err
	}
	return len(droplets), nil
}

// Create mints n juries one at a time: a fresh name, a fresh perm_jury API
// key bound to that name, and a droplet booted with that pair baked into
// its bootstrap script.
func (d *DigitalOcean) Create(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		name, err := idgen.JuryName()
		if err != nil {
			return fmt.Errorf("autoscaler: create jury: %w", err)
		}
		apiKey, err := d.keys.IssueJuryKey(ctx, name)
		if err != nil {
			return fmt.Errorf("autoscaler: create jury: issue key: %w", err)
		}
		script, err := renderBootstrapScript(d.judgeURL, apiKey)
		if err != nil {
			return fmt.Errorf("autoscaler: create jury: %w", err)
		}

		body := createDropletRequest{
			Name:     name,
			Region:   juryRegion,
			Size:     jurySize,
			Image:    juryImage,
			Tags:     []string{juryTag},
			UserData: script,
		}
		if err := d.do(ctx, http.MethodPost, "/droplets", body, nil); err != nil {
			return fmt.Errorf("autoscaler: create jury %s: %w", name, err)
		}
	}
	return nil
}

// Destroy tears down up to n juries chosen arbitrarily from the tagged set
// (spec §9 preserves this "no in-progress check" behavior consciously).
func (d *DigitalOcean) Destroy(ctx context.Context, n int) (int, error) {
	droplets, err := d.listJuries(ctx)
	if err != nil {
		return 0, err
	}
	if n > len(droplets) {
		n = len(droplets)
	}

	destroyed := 0
	for i := 0; i < n; i++ {
		id := droplets[i].ID
		if err := d.do(ctx, http.MethodDelete, fmt.Sprintf("/droplets/%d", id), nil, nil); err != nil {
			d.logger.Warn("failed to destroy jury droplet", "droplet_id", id, "error", err.Error())
			continue
		}
		destroyed++
	}
	return destroyed, nil
}

func (d *DigitalOcean) listJuries(ctx context.Context) ([]dropletSummary, error) {
	var resp dropletListResponse
	if err := d.do(ctx, http.MethodGet, "/droplets?tag_name="+juryTag, nil, &resp); err != nil {
		return nil, fmt.Errorf("autoscaler: list juries: %w", err)
	}
	return resp.Droplets, nil
}

// do performs one DigitalOcean API call, retrying per d.retry's policy
// exactly as the donor client's own makeRequest does.
func (d *DigitalOcean) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reqBody []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = b
	}

	var lastErr error
	for attempt := 0; attempt <= d.retry.MaxRetries(); attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, digitalOceanBaseURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+d.token)

		resp, err := d.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if d.retry.ShouldRetry(ctx, nil, err, attempt) {
				time.Sleep(d.retry.WaitTime(attempt))
				continue
			}
			return fmt.Errorf("request failed: %w", err)
		}

		if d.retry.ShouldRetry(ctx, resp, nil, attempt) {
			resp.Body.Close()
			time.Sleep(d.retry.WaitTime(attempt))
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("digitalocean api: %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
		}
		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
