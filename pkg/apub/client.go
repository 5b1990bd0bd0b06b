package apub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"
)

const (
	contentType = "application/activity+json"
	userAgent   = "skein/1.0 ActivityPub"
)

var (
	ErrFetchFailed    = errors.New("apub: fetch failed")
	ErrDeliveryFailed = errors.New("apub: delivery failed")
	ErrNoSelfLink     = errors.New("apub: webfinger response has no self link")
)

// ClientConfig tunes the federation HTTP client. Zero values fall back
// to defaults.
type ClientConfig struct {
	Timeout           time.Duration
	TransportSettings *resty.TransportSettings

	ResponseMiddlewares []resty.ResponseMiddleware
}

var DefaultConfig = &ClientConfig{
	Timeout: 10 * time.Second,
	TransportSettings: &resty.TransportSettings{
		DialerTimeout:       2 * time.Second,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 2 * time.Second,
	},
}

// Client talks to remote federation servers with bounded timeouts. It
// never retries; retry policy belongs to the caller.
type Client struct {
	client *resty.Client
}

func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = DefaultConfig
	}

	client := resty.NewWithTransportSettings(cfg.TransportSettings)

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultConfig.Timeout
	}
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)

	for _, m := range cfg.ResponseMiddlewares {
		client.AddResponseMiddleware(m)
	}

	return &Client{client: client}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

type webfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

type webfingerResponse struct {
	Subject string          `json:"subject"`
	Links   []webfingerLink `json:"links"`
}

// ResolveAccount performs the account-to-URI discovery step: a
// webfinger lookup of "user@domain" returning the actor's canonical
// profile URI.
func (c *Client) ResolveAccount(ctx context.Context, acct string) (string, error) {
	acct = strings.TrimPrefix(acct, "acct:")
	acct = strings.TrimPrefix(acct, "@")

	_, domain, ok := strings.Cut(acct, "@")
	if !ok || domain == "" {
		return "", fmt.Errorf("%w: malformed account %q", ErrFetchFailed, acct)
	}

	res, err := c.r(ctx).
		SetQueryParam("resource", "acct:"+acct).
		SetResult(&webfingerResponse{}).
		Get(fmt.Sprintf("https://%s/.well-known/webfinger", domain))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("%w: webfinger for %q returned %d", ErrFetchFailed, acct, res.StatusCode())
	}

	wf := res.Result().(*webfingerResponse)
	for _, link := range wf.Links {
		if link.Rel == "self" && strings.Contains(link.Type, "activity+json") && link.Href != "" {
			return link.Href, nil
		}
	}
	return "", ErrNoSelfLink
}

// FetchActor retrieves and validates an actor profile document.
func (c *Client) FetchActor(ctx context.Context, uri string) (*Actor, error) {
	raw, err := c.fetchDocument(ctx, uri)
	if err != nil {
		return nil, err
	}
	return ParseActor(raw)
}

// FetchObject retrieves a remote object and normalizes it into a Note.
func (c *Client) FetchObject(ctx context.Context, uri string) (*Note, error) {
	raw, err := c.fetchDocument(ctx, uri)
	if err != nil {
		return nil, err
	}
	return ParseObject(raw)
}

func (c *Client) fetchDocument(ctx context.Context, uri string) (json.RawMessage, error) {
	var raw json.RawMessage

	res, err := c.r(ctx).
		SetHeader("Accept", contentType).
		SetResult(&raw).
		Get(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("%w: GET %s returned %d", ErrFetchFailed, uri, res.StatusCode())
	}
	return raw, nil
}

// Deliver POSTs an activity payload to a remote inbox. Request signing
// happens upstream in the delivery edge.
func (c *Client) Deliver(ctx context.Context, inboxURI string, payload []byte) error {
	res, err := c.r(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("Accept", contentType).
		SetBody(payload).
		Post(inboxURI)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("%w: POST %s returned %d", ErrDeliveryFailed, inboxURI, res.StatusCode())
	}
	return nil
}
