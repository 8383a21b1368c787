// Package roundapi implements the session-oriented HTTP protocol of
// the remote round server: start a session, submit one movement batch
// per day, collect the day's demand records and penalties, end the
// session.
package roundapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/signalsfoundry/fuelchain-optimizer/core"
	"github.com/signalsfoundry/fuelchain-optimizer/internal/logging"
	"github.com/signalsfoundry/fuelchain-optimizer/model"
)

// ErrNoSession is returned when PlayRound or EndSession is called
// without an established session.
var ErrNoSession = errors.New("no active session")

// ErrSessionConflict indicates the server already holds an active
// session for this key.
var ErrSessionConflict = errors.New("session conflict")

const (
	headerAPIKey    = "API-KEY"
	headerSessionID = "SESSION-ID"

	pathSessionStart  = "/api/v1/session/start"
	pathSessionEnd    = "/api/v1/session/end"
	pathSessionStatus = "/api/v1/session/status"
	pathPlayRound     = "/api/v1/play/round"
)

// Config holds client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	MaxRetries int           // per-request retry budget, 0 means default
	Timeout    time.Duration // per-request timeout, 0 means default
}

// Client talks the round protocol. It implements core.RoundExchanger.
// Not safe for concurrent use; the driver calls it from one goroutine.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        logging.Logger

	sessionID string
}

// NewClient builds a round client. A nil logger drops all logs.
func NewClient(cfg Config, log logging.Logger) *Client {
	if log == nil {
		log = logging.Noop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// SessionID returns the current session id, empty when no session is
// active.
func (c *Client) SessionID() string { return c.sessionID }

// StartSession opens a server session and records its id. A 409 means
// a stale session is still open; it is ended and the start retried
// once.
func (c *Client) StartSession(ctx context.Context) error {
	err := c.startSession(ctx)
	if errors.Is(err, ErrSessionConflict) {
		c.log.Warn(ctx, "stale session on server, ending it before retry")
		if endErr := c.endSessionRaw(ctx); endErr != nil {
			return fmt.Errorf("end stale session: %w", endErr)
		}
		err = c.startSession(ctx)
	}
	return err
}

func (c *Client) startSession(ctx context.Context) error {
	body, err := c.do(ctx, http.MethodPost, pathSessionStart, nil)
	if err != nil {
		return err
	}
	// The server answers with the bare session id as plain text.
	id := strings.TrimSpace(string(body))
	if id == "" {
		return errors.New("start session: empty session id in response")
	}
	c.sessionID = id
	c.log.Info(ctx, "session started", logging.String("session_id", id))
	return nil
}

// PlayRound submits the day's movements and returns the server's
// report for that day.
func (c *Client) PlayRound(ctx context.Context, day int, movements []model.Movement) (*core.RoundResult, error) {
	if c.sessionID == "" {
		return nil, ErrNoSession
	}

	req := playRoundRequest{Day: day, Movements: make([]movementPayload, 0, len(movements))}
	for _, m := range movements {
		req.Movements = append(req.Movements, movementPayload{
			ConnectionID: m.LinkID,
			Amount:       m.Amount,
		})
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal round request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, pathPlayRound, payload)
	if err != nil {
		return nil, fmt.Errorf("play round day %d: %w", day, err)
	}

	var resp playRoundResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode round response day %d: %w", day, err)
		}
	}
	return c.toRoundResult(ctx, &resp), nil
}

// EndSession closes the current session. Calling it without a session
// is a no-op.
func (c *Client) EndSession(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	return c.endSessionRaw(ctx)
}

func (c *Client) endSessionRaw(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, pathSessionEnd, nil); err != nil {
		return err
	}
	c.log.Info(ctx, "session ended", logging.String("session_id", c.sessionID))
	c.sessionID = ""
	return nil
}

// SessionActive asks the server whether a session is currently open
// for this key.
func (c *Client) SessionActive(ctx context.Context) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, pathSessionStatus, nil)
	if err != nil {
		return false, err
	}
	var status struct {
		Active bool `json:"active"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return false, fmt.Errorf("decode session status: %w", err)
	}
	return status.Active, nil
}

// do issues one request with a bounded exponential-backoff retry
// budget. Client errors other than 409 are permanent; 409 surfaces as
// ErrSessionConflict so StartSession can recover.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	op := func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set(headerAPIKey, c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		if c.sessionID != "" {
			req.Header.Set(headerSessionID, c.sessionID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusConflict:
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrSessionConflict, strings.TrimSpace(string(body))))
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return nil, backoff.Permanent(fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body))))
		default:
			return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
		}
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries)),
	)
}

type playRoundRequest struct {
	Day       int               `json:"day"`
	Movements []movementPayload `json:"movements"`
}

type movementPayload struct {
	ConnectionID string  `json:"connectionId"`
	Amount       float64 `json:"amount"`
}

type playRoundResponse struct {
	Demand    []demandPayload  `json:"demand"`
	Penalties []penaltyPayload `json:"penalties"`
	DeltaKPIs *kpiPayload      `json:"deltaKpis"`
}

// demandPayload tolerates numeric ids, which the server is known to
// emit.
type demandPayload struct {
	ID               json.Number `json:"id"`
	CustomerID       json.Number `json:"customer_id"`
	Quantity         float64     `json:"quantity"`
	PostDay          int         `json:"post_day"`
	StartDeliveryDay int         `json:"start_delivery_day"`
	EndDeliveryDay   int         `json:"end_delivery_day"`
}

type penaltyPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type kpiPayload struct {
	Cost float64 `json:"cost"`
	CO2  float64 `json:"co2"`
}

// toRoundResult converts the wire response, dropping demand records
// that fail validation rather than aborting the day.
func (c *Client) toRoundResult(ctx context.Context, resp *playRoundResponse) *core.RoundResult {
	out := &core.RoundResult{}
	for _, d := range resp.Demand {
		dem, err := model.NewDemand(
			d.ID.String(),
			d.CustomerID.String(),
			d.Quantity,
			d.PostDay,
			d.StartDeliveryDay,
			d.EndDeliveryDay,
		)
		if err != nil {
			c.log.Warn(ctx, "skipping malformed demand record",
				logging.String("demand", d.ID.String()),
				logging.String("error", err.Error()),
			)
			continue
		}
		out.Demands = append(out.Demands, dem)
	}
	for _, p := range resp.Penalties {
		out.Penalties = append(out.Penalties, core.Penalty{Type: p.Type, Message: p.Message})
	}
	if resp.DeltaKPIs != nil {
		out.KPIs = &core.KPIDelta{Cost: resp.DeltaKPIs.Cost, CO2: resp.DeltaKPIs.CO2}
	}
	return out
}
