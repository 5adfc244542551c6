// Package network validates the wallet's selected chain against the
// configured allow-list and drives switch/add requests when it drifts.
package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainwage/payroll_layer/internal/wallet"
	"github.com/chainwage/payroll_layer/pkg/logger"
)

// ErrNoNetworks is returned when the validator is built with an empty
// allow-list.
var ErrNoNetworks = errors.New("network allow-list is empty")

// ErrSwitchRejected is returned when the user declines the switch prompt.
var ErrSwitchRejected = errors.New("network switch rejected by user")

// Validator holds the static allow-list of network magic numbers. The first
// entry is the preferred network used for switch requests.
type Validator struct {
	allowed []wallet.NetworkDefinition
	byMagic map[uint32]wallet.NetworkDefinition
	log     *logger.Logger
}

// NewValidator builds a validator from the configured network definitions.
func NewValidator(allowed []wallet.NetworkDefinition, log *logger.Logger) (*Validator, error) {
	if len(allowed) == 0 {
		return nil, ErrNoNetworks
	}
	if log == nil {
		log = logger.NewDefault("network")
	}

	byMagic := make(map[uint32]wallet.NetworkDefinition, len(allowed))
	for _, def := range allowed {
		if def.Magic == 0 {
			return nil, fmt.Errorf("network %q has no magic", def.Name)
		}
		byMagic[def.Magic] = def
	}

	return &Validator{allowed: allowed, byMagic: byMagic, log: log}, nil
}

// Validate reports whether the magic is on the allow-list.
func (v *Validator) Validate(magic uint32) bool {
	_, ok := v.byMagic[magic]
	return ok
}

// Allowed returns the configured allow-list in preference order.
func (v *Validator) Allowed() []wallet.NetworkDefinition {
	out := make([]wallet.NetworkDefinition, len(v.allowed))
	copy(out, v.allowed)
	return out
}

// Preferred returns the network used for switch requests.
func (v *Validator) Preferred() wallet.NetworkDefinition {
	return v.allowed[0]
}

// Ensure checks the provider's current network and, if it is not on the
// allow-list, asks the wallet to switch to the preferred network. A wallet
// that does not know the network is asked to add it first, then the switch is
// retried once. Returns nil only when the provider ends up on an allowed
// network.
func (v *Validator) Ensure(ctx context.Context, provider wallet.Provider) error {
	current, err := provider.GetNetwork(ctx)
	if err != nil {
		return fmt.Errorf("read wallet network: %w", err)
	}
	if v.Validate(current.Magic) {
		return nil
	}

	target := v.Preferred()
	v.log.WithField("current", current.Magic).
		WithField("target", target.Magic).
		Info("wallet on unsupported network, requesting switch")

	err = provider.SwitchNetwork(ctx, target.Magic)
	if wallet.IsCode(err, wallet.CodeUnsupportedNetwork) {
		if addErr := provider.AddNetwork(ctx, target); addErr != nil {
			return v.mapRejection(addErr, "add network")
		}
		err = provider.SwitchNetwork(ctx, target.Magic)
	}
	if err != nil {
		return v.mapRejection(err, "switch network")
	}

	// Re-read rather than trusting the switch call; wallets have been seen
	// acknowledging a switch while staying put.
	current, err = provider.GetNetwork(ctx)
	if err != nil {
		return fmt.Errorf("confirm wallet network: %w", err)
	}
	if !v.Validate(current.Magic) {
		return fmt.Errorf("wallet still on unsupported network %d", current.Magic)
	}
	return nil
}

func (v *Validator) mapRejection(err error, op string) error {
	if wallet.IsCode(err, wallet.CodeConnectionDenied) || wallet.IsCode(err, wallet.CodeCanceled) {
		return fmt.Errorf("%s: %w", op, ErrSwitchRejected)
	}
	return fmt.Errorf("%s: %w", op, err)
}
