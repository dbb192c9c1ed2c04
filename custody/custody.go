// Package custody is the HTTP client for the remote custodial transaction
// service: session login, app and credential issuance, address management,
// balance queries, funding, and asset issuance. All ledger cryptography lives
// on the remote side.
package custody

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sigillo.dev/sigillo/model"
)

// Config holds everything needed to construct a Client.
type Config struct {
	// BaseURL is the custody service root (e.g. "https://custody.example").
	BaseURL string
	// HSMID, AlgodID and IndexerID select the remote signing and node
	// backends on endpoints that require them.
	HSMID     string
	AlgodID   string
	IndexerID string
	// HTTPClient is used for all requests. If nil, a client with Timeout
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger
	// Timeout bounds each request when HTTPClient is nil.
	Timeout time.Duration
}

// Client talks to the custody service. It carries the session and access
// tokens acquired during bootstrap; construct one per orchestration run, do
// not share across runs.
type Client struct {
	baseURL    string
	hsmID      string
	algodID    string
	indexerID  string
	httpClient *http.Client
	logger     *slog.Logger

	sessionToken string
	accessToken  string
}

// New constructs a Client from config.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("custody: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("custody: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		hsmID:      config.HSMID,
		algodID:    config.AlgodID,
		indexerID:  config.IndexerID,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// SessionToken returns the session token acquired by Login, "" before.
func (c *Client) SessionToken() string { return c.sessionToken }

// SetAccessToken installs a previously issued access token, e.g. from
// persisted identity state.
func (c *Client) SetAccessToken(token string) { c.accessToken = token }

// doForm POSTs form-encoded fields and returns the response body. The
// session token rides in the form when present; the access token goes in the
// Authorization header.
func (c *Client) doForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	if c.sessionToken != "" && form.Get("session_token") == "" {
		form.Set("session_token", c.sessionToken)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.Errorf(model.ErrAPI, "custody request %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.Errorf(model.ErrAPI, "custody response %s unreadable: %v", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("custody call failed",
			"path", path, "status", resp.StatusCode, "body", truncate(body))
		code := model.ErrAPI
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			code = model.ErrAuthFailed
		}
		return nil, model.Errorf(code, "custody %s returned %d: %s", path, resp.StatusCode, truncate(body))
	}
	return body, nil
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Login exchanges email/password for a session token and stores it on the
// client.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := c.doForm(ctx, "/login", url.Values{
		"email":    {email},
		"password": {password},
	})
	if err != nil {
		if model.CodeOf(err) == model.ErrAPI {
			return model.Errorf(model.ErrAuthFailed, "login rejected: %v", err)
		}
		return err
	}
	var out struct {
		SessionToken string `json:"session_token"`
		Token        string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return model.Errorf(model.ErrAuthFailed, "login response unreadable: %v", err)
	}
	token := out.SessionToken
	if token == "" {
		token = out.Token
	}
	if token == "" {
		return model.Errorf(model.ErrAuthFailed, "login response carried no session token")
	}
	c.sessionToken = token
	return nil
}

// AppKey is one registered application's signing material.
type AppKey struct {
	SecretKey  string
	AppName    string
	AppID      string
	Blockchain string
}

// CreateApp registers an application under the given name and network.
func (c *Client) CreateApp(ctx context.Context, appName, network string) error {
	_, err := c.doForm(ctx, "/create_dapp", url.Values{
		"dapp_name":  {appName},
		"blockchain": {network},
	})
	return err
}

// AppKeys lists the registered applications and their keys.
func (c *Client) AppKeys(ctx context.Context) ([]AppKey, error) {
	body, err := c.doForm(ctx, "/get_dapp_keys", url.Values{})
	if err != nil {
		return nil, err
	}
	var out struct {
		Keys []struct {
			SecretKey string `json:"secret_key"`
			AppInfo   struct {
				AppName    string `json:"app_name"`
				DappID     string `json:"dapp_id"`
				Blockchain string `json:"blockchain"`
			} `json:"app_info"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, model.Errorf(model.ErrAPI, "app keys response unreadable: %v", err)
	}
	keys := make([]AppKey, 0, len(out.Keys))
	for _, k := range out.Keys {
		keys = append(keys, AppKey{
			SecretKey:  k.SecretKey,
			AppName:    k.AppInfo.AppName,
			AppID:      k.AppInfo.DappID,
			Blockchain: k.AppInfo.Blockchain,
		})
	}
	return keys, nil
}

// IssueCredential exchanges an application secret key for a bearer access
// token and stores it on the client.
func (c *Client) IssueCredential(ctx context.Context, secretKey string) error {
	body, err := c.doForm(ctx, "/jwt_generation", url.Values{
		"secret_key": {secretKey},
	})
	if err != nil {
		return err
	}
	var out struct {
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return model.Errorf(model.ErrAPI, "credential response unreadable: %v", err)
	}
	token := out.AccessToken
	if token == "" {
		token = out.Token
	}
	if token == "" {
		return model.Errorf(model.ErrAuthFailed, "credential response carried no access token")
	}
	c.accessToken = token
	return nil
}

// GenerateAddress asks the remote HSM for a fresh address under label. An
// empty address in the response is returned as "" with no error; callers
// fall back to listing.
func (c *Client) GenerateAddress(ctx context.Context, label string) (string, error) {
	body, err := c.doForm(ctx, "/algo/address_generation", url.Values{
		"hsm_id": {c.hsmID},
		"label":  {label},
	})
	if err != nil {
		return "", err
	}
	var out struct {
		HSMResponse struct {
			Address string `json:"address"`
		} `json:"hsm_response"`
		Address string `json:"address"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", model.Errorf(model.ErrAPI, "address generation response unreadable: %v", err)
	}
	if out.HSMResponse.Address != "" {
		return out.HSMResponse.Address, nil
	}
	return out.Address, nil
}

// Address is one HSM-managed address binding.
type Address struct {
	Address string `json:"address"`
	Label   string `json:"label"`
}

// ListAddresses returns the addresses bound to the current access token.
func (c *Client) ListAddresses(ctx context.Context) ([]Address, error) {
	body, err := c.doForm(ctx, "/get_addresses_by_jwt", url.Values{})
	if err != nil {
		return nil, err
	}
	var out struct {
		Addresses []Address `json:"addresses"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, model.Errorf(model.ErrAPI, "address listing response unreadable: %v", err)
	}
	return out.Addresses, nil
}

// indexerQuery POSTs a subject/arguments lookup against one of the generic
// indexer endpoints. Arguments travel as a JSON-encoded form field.
func (c *Client) indexerQuery(ctx context.Context, path, subject string, arguments map[string]any) (json.RawMessage, error) {
	args, err := json.Marshal(arguments)
	if err != nil {
		return nil, err
	}
	body, err := c.doForm(ctx, path, url.Values{
		"indexer_id": {c.indexerID},
		"subject":    {subject},
		"arguments":  {string(args)},
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// AccountInfo returns the balance of address in base units.
func (c *Client) AccountInfo(ctx context.Context, address string) (uint64, error) {
	body, err := c.indexerQuery(ctx, "/algo/blockchain_info", "account",
		map[string]any{"address": address})
	if err != nil {
		return 0, err
	}
	var out struct {
		Account struct {
			Amount  *uint64 `json:"amount"`
			Balance *uint64 `json:"balance"`
		} `json:"account"`
		Amount  *uint64 `json:"amount"`
		Balance *uint64 `json:"balance"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, model.Errorf(model.ErrAPI, "account info response unreadable: %v", err)
	}
	for _, v := range []*uint64{out.Account.Amount, out.Account.Balance, out.Amount, out.Balance} {
		if v != nil {
			return *v, nil
		}
	}
	return 0, nil
}

// Dispense requests a balance topup for address.
func (c *Client) Dispense(ctx context.Context, address string, amount uint64) error {
	_, err := c.doForm(ctx, "/algo/algos_dispenser", url.Values{
		"algod_id": {c.algodID},
		"address":  {address},
		"amount":   {strconv.FormatUint(amount, 10)},
	})
	return err
}

// AssetCreateRequest is one indivisible-asset issuance submission.
type AssetCreateRequest struct {
	SenderAddress           string
	Total                   uint64
	Decimals                uint32
	DefaultFrozen           bool
	StrictEmptyAddressCheck bool
	UnitName                string
	AssetName               string
	Manager                 string
	Reserve                 string
	Freeze                  string
	Clawback                string
	MetadataURL             string
	Metadata                string
	Note                    string
	Label                   string
}

// CreateAsset submits an asset-issuance transaction and returns the raw
// backend response for the caller's extraction strategies.
func (c *Client) CreateAsset(ctx context.Context, req AssetCreateRequest) (json.RawMessage, error) {
	form := url.Values{
		"hsm_id":                     {c.hsmID},
		"algod_id":                   {c.algodID},
		"sender_address":             {req.SenderAddress},
		"total":                      {strconv.FormatUint(req.Total, 10)},
		"decimals":                   {strconv.FormatUint(uint64(req.Decimals), 10)},
		"default_frozen":             {strconv.FormatBool(req.DefaultFrozen)},
		"strict_empty_address_check": {strconv.FormatBool(req.StrictEmptyAddressCheck)},
		"unit_name":                  {req.UnitName},
		"asset_name":                 {req.AssetName},
		"manager":                    {req.Manager},
		"reserve":                    {req.Reserve},
		"freeze":                     {req.Freeze},
		"clawback":                   {req.Clawback},
		"url":                        {req.MetadataURL},
		"metadata":                   {req.Metadata},
		"note":                       {req.Note},
		"label":                      {req.Label},
	}
	body, err := c.doForm(ctx, "/algo/asset_create_txn", form)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// AssetInfo looks up one issued asset by id.
func (c *Client) AssetInfo(ctx context.Context, assetID uint64) (json.RawMessage, error) {
	return c.indexerQuery(ctx, "/algo/blockchain_info", "asset",
		map[string]any{"asset_id": assetID})
}

// SearchAssets searches issued assets by creator address.
func (c *Client) SearchAssets(ctx context.Context, creator string) (json.RawMessage, error) {
	return c.indexerQuery(ctx, "/algo/search_on_blockchain", "assets",
		map[string]any{"creator": creator})
}
