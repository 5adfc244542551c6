package wallet

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsCode(t *testing.T) {
	base := &Error{Code: CodeCanceled, Message: "user closed the prompt"}
	wrapped := fmt.Errorf("switch network: %w", base)

	if !IsCode(wrapped, CodeCanceled) {
		t.Fatal("expected IsCode to match through wrapping")
	}
	if IsCode(wrapped, CodeNoProvider) {
		t.Fatal("IsCode matched the wrong code")
	}
	if IsCode(errors.New("plain"), CodeCanceled) {
		t.Fatal("IsCode matched a non-provider error")
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"no provider", &Error{Code: CodeNoProvider}, "No wallet found. Install a wallet extension and reload."},
		{"denied", fmt.Errorf("connect: %w", &Error{Code: CodeConnectionDenied}), "Connection request was rejected in the wallet."},
		{"canceled", &Error{Code: CodeCanceled}, "The wallet request was canceled."},
		{"unknown code", &Error{Code: "SOMETHING_NEW"}, "Something went wrong talking to the wallet. Try again."},
		{"no accounts", fmt.Errorf("connect: %w", ErrNoAccounts), "The wallet returned no accounts. Unlock it and try again."},
		{"plain error", errors.New("boom"), "Something went wrong talking to the wallet. Try again."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := UserMessage(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
