package stellar

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HorizonConfig carries the settings needed to talk to a Horizon server.
type HorizonConfig struct {
	BaseURL           string
	NetworkPassphrase string
	AssetCode         string
	// IssuerSecret signs mint transactions. Empty disables minting.
	IssuerSecret string
	// FriendbotURL funds new testnet accounts. Empty disables funding.
	FriendbotURL string
	HTTPClient   *http.Client
}

// Horizon talks to a Stellar Horizon server: it fetches account state and
// submits signed single-payment transactions.
type Horizon struct {
	baseURL      string
	passphrase   string
	assetCode    string
	friendbotURL string
	issuer       Keypair
	hasIssuer    bool
	client       *http.Client
}

// NewHorizon validates the configuration and builds a Horizon connector.
func NewHorizon(cfg HorizonConfig) (*Horizon, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("horizon base url is required")
	}
	if cfg.AssetCode == "" || len(cfg.AssetCode) > 12 {
		return nil, fmt.Errorf("asset code must be 1-12 characters")
	}

	h := &Horizon{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		passphrase:   cfg.NetworkPassphrase,
		assetCode:    cfg.AssetCode,
		friendbotURL: cfg.FriendbotURL,
		client:       cfg.HTTPClient,
	}
	if h.client == nil {
		h.client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.IssuerSecret != "" {
		issuer, err := KeypairFromSecret(cfg.IssuerSecret)
		if err != nil {
			return nil, fmt.Errorf("issuer secret: %w", err)
		}
		h.issuer = issuer
		h.hasIssuer = true
	}
	return h, nil
}

// Mint pays freshly issued tokens from the issuer account to the destination.
func (h *Horizon) Mint(ctx context.Context, destination string, amount decimal.Decimal) (string, error) {
	if !h.hasIssuer {
		return "", fmt.Errorf("%w: issuer key not configured", ErrNetwork)
	}
	return h.payment(ctx, h.issuer, destination, amount)
}

// Pay submits a payment signed with the sender's secret.
func (h *Horizon) Pay(ctx context.Context, fromSecret, destination string, amount decimal.Decimal) (string, error) {
	kp, err := KeypairFromSecret(fromSecret)
	if err != nil {
		return "", err
	}
	return h.payment(ctx, kp, destination, amount)
}

// Burn retires tokens by paying them back to the issuer account.
func (h *Horizon) Burn(ctx context.Context, fromSecret string, amount decimal.Decimal) (string, error) {
	if !h.hasIssuer {
		return "", fmt.Errorf("%w: issuer key not configured", ErrNetwork)
	}
	kp, err := KeypairFromSecret(fromSecret)
	if err != nil {
		return "", err
	}
	return h.payment(ctx, kp, h.issuer.Address(), amount)
}

// Balance returns the asset balance held by the address. Unfunded accounts
// and accounts without a trustline report zero, matching how clients read
// a brand-new wallet.
func (h *Horizon) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	account, err := h.account(ctx, address)
	if err != nil {
		if err == ErrAccountNotFound {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	for _, b := range account.Balances {
		if b.AssetType != "native" && b.AssetCode == h.assetCode {
			return decimal.NewFromString(b.Balance)
		}
	}
	return decimal.Zero, nil
}

// FundAccount asks friendbot to provision base reserves for a new account.
func (h *Horizon) FundAccount(ctx context.Context, address string) error {
	if h.friendbotURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.friendbotURL+"?addr="+url.QueryEscape(address), nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: friendbot: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: friendbot returned %d", ErrNetwork, resp.StatusCode)
	}
	return nil
}

func (h *Horizon) payment(ctx context.Context, source Keypair, destination string, amount decimal.Decimal) (string, error) {
	destRaw, err := DecodeAddress(destination)
	if err != nil {
		return "", err
	}
	if !h.hasIssuer {
		return "", fmt.Errorf("%w: issuer key not configured", ErrNetwork)
	}
	issuerRaw := h.issuer.publicKey()

	account, err := h.account(ctx, source.Address())
	if err != nil {
		return "", err
	}
	sequence, err := strconv.ParseInt(account.Sequence, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad sequence %q", ErrNetwork, account.Sequence)
	}

	envelope, err := buildEnvelope(paymentTx{
		source:      source,
		sequence:    sequence + 1,
		destination: destRaw,
		asset:       asset{code: h.assetCode, issuer: issuerRaw},
		amount:      amount,
		now:         time.Now(),
	}, h.passphrase)
	if err != nil {
		return "", err
	}

	return h.submit(ctx, envelope)
}

type horizonAccount struct {
	Sequence string `json:"sequence"`
	Balances []struct {
		Balance   string `json:"balance"`
		AssetType string `json:"asset_type"`
		AssetCode string `json:"asset_code"`
	} `json:"balances"`
}

func (h *Horizon) account(ctx context.Context, address string) (horizonAccount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/accounts/"+url.PathEscape(address), nil)
	if err != nil {
		return horizonAccount{}, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return horizonAccount{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return horizonAccount{}, ErrAccountNotFound
	}
	if resp.StatusCode >= 300 {
		return horizonAccount{}, fmt.Errorf("%w: account lookup returned %d", ErrNetwork, resp.StatusCode)
	}

	var account horizonAccount
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return horizonAccount{}, fmt.Errorf("%w: decode account: %v", ErrNetwork, err)
	}
	return account, nil
}

func (h *Horizon) submit(ctx context.Context, envelope []byte) (string, error) {
	form := url.Values{"tx": {base64.StdEncoding.EncodeToString(envelope)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/transactions", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: submit: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrNetwork, err)
	}

	if resp.StatusCode >= 300 {
		var failure struct {
			Extras struct {
				ResultCodes struct {
					Transaction string   `json:"transaction"`
					Operations  []string `json:"operations"`
				} `json:"result_codes"`
			} `json:"extras"`
		}
		if err := json.Unmarshal(body, &failure); err == nil && failure.Extras.ResultCodes.Transaction != "" {
			return "", fmt.Errorf("%w: rejected: %s %v", ErrNetwork,
				failure.Extras.ResultCodes.Transaction, failure.Extras.ResultCodes.Operations)
		}
		return "", fmt.Errorf("%w: submit returned %d", ErrNetwork, resp.StatusCode)
	}

	var success struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(body, &success); err != nil || success.Hash == "" {
		return "", fmt.Errorf("%w: missing hash in response", ErrNetwork)
	}
	return success.Hash, nil
}
