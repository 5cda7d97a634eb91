package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPBackend is a bounded-retry POST client against
// https://<host>/v2/pipeline (spec §4.3).
type HTTPBackend struct {
	Client *http.Client
	DBURL  string
	Token  string

	// UserAgent, when set, is sent on every request.
	UserAgent string

	// MaxAttempts and BackoffInterval default to 5 and 100ms (spec
	// §4.3) when zero; fields so tests can shrink them.
	MaxAttempts     int
	BackoffInterval time.Duration
}

func NewHTTPBackend(client *http.Client, dbURL, token string) *HTTPBackend {
	return &HTTPBackend{Client: client, DBURL: dbURL, Token: token}
}

func (b *HTTPBackend) maxAttempts() int {
	if b.MaxAttempts > 0 {
		return b.MaxAttempts
	}
	return 5
}

func (b *HTTPBackend) backoffInterval() time.Duration {
	if b.BackoffInterval > 0 {
		return b.BackoffInterval
	}
	return 100 * time.Millisecond
}

func (b *HTTPBackend) url() string {
	return fmt.Sprintf("https://%s/v2/pipeline", b.DBURL)
}

// Send posts the built pipeline request with up to 5 attempts,
// sleeping 100ms between attempts on a retryable failure (spec §4.3).
func (b *HTTPBackend) Send(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(buildPipelineRequest(req))
	if err != nil {
		return Response{}, err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(b.backoffInterval()), uint64(b.maxAttempts()-1)),
		ctx,
	)

	var resp Response
	op := func() error {
		raw, err := b.post(ctx, body)
		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		decoded, err := decodePipelineResponse(raw)
		if err != nil {
			// JSON parse failures and surfaced remote errors are
			// non-retriable (spec §4.3): wrapping them in
			// backoff.Permanent stops the loop immediately.
			return backoff.Permanent(err)
		}
		resp = decoded
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return Response{}, unwrapPermanent(err)
	}
	return resp, nil
}

func unwrapPermanent(err error) error {
	var perr *backoff.PermanentError
	for {
		if p, ok := err.(*backoff.PermanentError); ok {
			perr = p
			err = perr.Err
			continue
		}
		break
	}
	return err
}

// post issues one HTTP attempt, classifying connection failures,
// body-read failures, and non-2xx statuses as retryable (spec §4.3).
func (b *HTTPBackend) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.Token)
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, retryable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryable(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, retryable(fmt.Errorf("pipeline request failed: %s: %s", resp.Status, raw))
	}

	return raw, nil
}

// GetTransactionBaton issues `execute {sql}` (a BEGIN variant) and
// returns the server-issued baton (spec §4.2).
func (b *HTTPBackend) GetTransactionBaton(ctx context.Context, sql string) (string, error) {
	resp, err := b.Send(ctx, Request{SQL: sql, InTx: true})
	if err != nil {
		return "", err
	}
	if resp.Baton == "" {
		return "", fmt.Errorf("failed to begin transaction: no baton returned")
	}
	return resp.Baton, nil
}
