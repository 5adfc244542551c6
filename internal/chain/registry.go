package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"

	"github.com/chainwage/payroll_layer/internal/app/domain/user"
)

// ErrNotRegistered is returned when the registry has no record for an address.
var ErrNotRegistered = errors.New("address not registered on chain")

// Registry record role values as stored by the contract.
const (
	registryRoleUnassigned = 0
	registryRoleEmployer   = 1
	registryRoleEmployee   = 2
)

// RoleRegistry reads the on-chain role registry contract. The contract itself
// is an opaque remote service; only its read interface is modelled here.
type RoleRegistry struct {
	client     *Client
	scriptHash string
}

// NewRoleRegistry wraps the registry contract at the given script hash.
func NewRoleRegistry(client *Client, scriptHash string) (*RoleRegistry, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client required")
	}
	if scriptHash == "" {
		return nil, fmt.Errorf("registry script hash required")
	}
	return &RoleRegistry{client: client, scriptHash: scriptHash}, nil
}

// Record is a registry entry for a wallet address.
type Record struct {
	Role     user.Role
	Employer string
}

// GetRecord looks up the role record for a wallet address. The contract's
// getRecord method returns [Integer role, ByteString employerAddress]; role 0
// or an empty stack means the address was never registered.
func (r *RoleRegistry) GetRecord(ctx context.Context, addr string) (Record, error) {
	param, err := addressParam(addr)
	if err != nil {
		return Record{}, fmt.Errorf("registry lookup: %w", err)
	}

	result, err := r.client.InvokeFunction(ctx, r.scriptHash, "getRecord", []ContractParam{param})
	if err != nil {
		return Record{}, fmt.Errorf("registry lookup: %w", err)
	}
	if result.State != "HALT" {
		return Record{}, fmt.Errorf("registry lookup faulted: %s", result.Exception)
	}
	if len(result.Stack) == 0 || result.Stack[0].Type == "Null" {
		return Record{}, ErrNotRegistered
	}

	items, err := ParseArray(result.Stack[0])
	if err != nil {
		return Record{}, fmt.Errorf("registry record: %w", err)
	}
	if len(items) < 2 {
		return Record{}, fmt.Errorf("registry record: expected 2 items, got %d", len(items))
	}

	roleValue, err := ParseInteger(items[0])
	if err != nil {
		return Record{}, fmt.Errorf("registry record role: %w", err)
	}

	switch roleValue.Int64() {
	case registryRoleUnassigned:
		return Record{}, ErrNotRegistered
	case registryRoleEmployer:
		return Record{Role: user.RoleEmployer}, nil
	case registryRoleEmployee:
		employer, err := ParseString(items[1])
		if err != nil {
			return Record{}, fmt.Errorf("registry record employer: %w", err)
		}
		if _, err := address.StringToUint160(employer); err != nil {
			return Record{}, fmt.Errorf("registry record employer %q: %w", employer, err)
		}
		return Record{Role: user.RoleEmployee, Employer: employer}, nil
	default:
		return Record{}, fmt.Errorf("registry record: unknown role %d", roleValue.Int64())
	}
}

// addressParam converts a base58 Neo address into the Hash160 parameter the
// contract expects.
func addressParam(addr string) (ContractParam, error) {
	u, err := address.StringToUint160(addr)
	if err != nil {
		return ContractParam{}, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return Hash160Param("0x" + hex.EncodeToString(u.BytesBE())), nil
}
