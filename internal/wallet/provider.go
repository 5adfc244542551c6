// Package wallet wraps a dAPI-style wallet provider: account access, network
// inspection and switching, and change notification for both.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Account is a wallet account as reported by the provider.
type Account struct {
	Address   string `json:"address"`
	Label     string `json:"label,omitempty"`
	PublicKey string `json:"publicKey,omitempty"`
}

// Network identifies the chain the wallet is currently pointed at.
type Network struct {
	Magic uint32 `json:"magic"`
	Name  string `json:"name,omitempty"`
}

// NetworkDefinition describes a network the wallet can be asked to add.
type NetworkDefinition struct {
	Magic  uint32 `json:"magic" yaml:"magic"`
	Name   string `json:"name" yaml:"name"`
	RPCURL string `json:"rpc_url" yaml:"rpc_url"`
}

// Provider is the wallet surface the payroll layer depends on. Implementations
// talk to a browser wallet bridge or a headless signing agent.
type Provider interface {
	// RequestAccounts prompts the wallet to connect and returns the accounts
	// the user exposed. An empty result without error is possible when the
	// wallet is locked.
	RequestAccounts(ctx context.Context) ([]Account, error)
	// GetAccount returns the currently active account.
	GetAccount(ctx context.Context) (Account, error)
	// GetNetwork returns the currently selected network.
	GetNetwork(ctx context.Context) (Network, error)
	// SwitchNetwork asks the wallet to select the network with the given magic.
	SwitchNetwork(ctx context.Context, magic uint32) error
	// AddNetwork asks the wallet to register a network definition.
	AddNetwork(ctx context.Context, def NetworkDefinition) error
}

// RPCProvider implements Provider over the wallet bridge's JSON-RPC endpoint.
type RPCProvider struct {
	endpoint   string
	httpClient *http.Client
}

var _ Provider = (*RPCProvider)(nil)

// NewRPCProvider creates a provider client for the given bridge endpoint.
func NewRPCProvider(endpoint string, timeout time.Duration) (*RPCProvider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("provider endpoint required")
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RPCProvider{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]Account, error) {
	raw, err := p.call(ctx, "requestAccounts", nil)
	if err != nil {
		return nil, err
	}

	var accounts []Account
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return accounts, nil
}

func (p *RPCProvider) GetAccount(ctx context.Context) (Account, error) {
	raw, err := p.call(ctx, "getAccount", nil)
	if err != nil {
		return Account{}, err
	}

	var account Account
	if err := json.Unmarshal(raw, &account); err != nil {
		return Account{}, fmt.Errorf("decode account: %w", err)
	}
	return account, nil
}

func (p *RPCProvider) GetNetwork(ctx context.Context) (Network, error) {
	raw, err := p.call(ctx, "getNetwork", nil)
	if err != nil {
		return Network{}, err
	}

	// Providers disagree on the shape here: some return {"magic": n, "name":
	// s}, older ones return {"chainId": n} or a bare number. Probe loosely
	// before committing to a decode.
	if magic := gjson.GetBytes(raw, "magic"); magic.Exists() {
		return Network{Magic: uint32(magic.Uint()), Name: gjson.GetBytes(raw, "name").String()}, nil
	}
	if chainID := gjson.GetBytes(raw, "chainId"); chainID.Exists() {
		return Network{Magic: uint32(chainID.Uint())}, nil
	}
	if parsed := gjson.ParseBytes(raw); parsed.Type == gjson.Number {
		return Network{Magic: uint32(parsed.Uint())}, nil
	}
	return Network{}, fmt.Errorf("decode network: unrecognized shape %s", string(raw))
}

func (p *RPCProvider) SwitchNetwork(ctx context.Context, magic uint32) error {
	_, err := p.call(ctx, "switchNetwork", map[string]interface{}{"magic": magic})
	return err
}

func (p *RPCProvider) AddNetwork(ctx context.Context, def NetworkDefinition) error {
	_, err := p.call(ctx, "addNetwork", map[string]interface{}{
		"magic":  def.Magic,
		"name":   def.Name,
		"rpcUrl": def.RPCURL,
	})
	return err
}

func (p *RPCProvider) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Code: CodeNoProvider, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if errField := gjson.GetBytes(respBody, "error"); errField.Exists() {
		code := errField.Get("type").String()
		if code == "" {
			code = CodeRPCError
		}
		return nil, &Error{Code: code, Message: errField.Get("description").String()}
	}

	result := gjson.GetBytes(respBody, "result")
	if !result.Exists() {
		return nil, &Error{Code: CodeRPCError, Message: "response missing result"}
	}
	return json.RawMessage(result.Raw), nil
}
