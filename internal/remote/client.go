// Package remote implements the Remote Uploader (spec §4.F): a periodic
// worker that pushes not-yet-uploaded reads to the first configured
// chronokeep-remote / chronokeep-remote-self API, in chunks, marking each
// chunk uploaded only once the remote side confirms the full count.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/chronokeeptiming/portal/internal/types"
)

const (
	httpTimeout    = 30 * time.Second
	uploadChunkSize = 50
)

// Client talks to a single chronokeep-remote(-self) endpoint. Grounded on
// the teacher's internal/rpc http_client.go: a *http.Client with both
// connect and end-to-end timeouts set via http.Transport and Client.Timeout
// respectively, rather than per-request contexts alone.
type Client struct {
	httpClient *http.Client
	api        types.ResultsApi
}

// NewClient builds a Client bound to one ResultsApi.
func NewClient(api types.ResultsApi) *Client {
	return &Client{
		api: api,
		httpClient: &http.Client{
			Timeout: httpTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: httpTimeout}).DialContext,
			},
		},
	}
}

// uploadRequest is the wire shape posted to the remote results endpoint.
type uploadRequest struct {
	Token string       `json:"token"`
	Reads []wireRead   `json:"reads"`
}

type wireRead struct {
	Chip               string `json:"chip"`
	IdentType          string `json:"identType"`
	Seconds            int64  `json:"seconds"`
	Milliseconds       int    `json:"milliseconds"`
	ReaderSeconds      int64  `json:"readerSeconds"`
	ReaderMilliseconds int    `json:"readerMilliseconds"`
	Antenna            int    `json:"antenna"`
	Reader             string `json:"reader"`
	RSSI               string `json:"rssi"`
}

type uploadResponse struct {
	Accepted int `json:"accepted"`
}

// UploadReads posts one chunk and returns how many reads the remote side
// reports it accepted. Callers only mark a chunk uploaded when this
// equals len(reads) (spec §4.F step 4, "exact-count-match").
func (c *Client) UploadReads(ctx context.Context, reads []types.Read) (int, error) {
	wire := make([]wireRead, len(reads))
	for i, r := range reads {
		wire[i] = wireRead{
			Chip:               r.Chip,
			IdentType:          r.IdentType.String(),
			Seconds:            r.Seconds,
			Milliseconds:       r.Milliseconds,
			ReaderSeconds:      r.ReaderSeconds,
			ReaderMilliseconds: r.ReaderMilliseconds,
			Antenna:            r.Antenna,
			Reader:             r.Reader,
			RSSI:               r.RSSI,
		}
	}

	body, err := json.Marshal(uploadRequest{Token: c.api.Token, Reads: wire})
	if err != nil {
		return 0, fmt.Errorf("remote client: marshal upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api.URI, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("remote client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("remote client: %s: %w (%v)", c.api.Nickname, types.ErrConnectionError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("remote client: %s: unexpected status %d: %w", c.api.Nickname, resp.StatusCode, types.ErrConnectionError)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("remote client: %s: decode response: %w", c.api.Nickname, err)
	}
	return out.Accepted, nil
}
