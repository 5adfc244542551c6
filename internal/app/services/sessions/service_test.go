package sessions

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"

	"github.com/chainwage/payroll_layer/internal/app/storage/memory"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc, err := New(store, store, []byte("test-secret"), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func signedLogin(t *testing.T, svc *Service, priv *keys.PrivateKey) (token string, addr string) {
	t.Helper()
	addr = priv.Address()

	nonce, message, err := svc.IssueNonce(context.Background(), addr)
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}

	signature := priv.Sign([]byte(message))
	publicKey := hex.EncodeToString(priv.PublicKey().Bytes())

	token, u, err := svc.Login(context.Background(), addr, publicKey, hex.EncodeToString(signature), message, nonce)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Address != addr {
		t.Fatalf("expected user for %s, got %s", addr, u.Address)
	}
	return token, addr
}

func TestNewRequiresSecret(t *testing.T) {
	store := memory.New()
	if _, err := New(store, store, nil, nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestLoginAndValidate(t *testing.T) {
	svc, store := newService(t)
	priv, err := keys.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	token, addr := signedLogin(t, svc, priv)

	userID, err := svc.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	u, err := store.GetUser(context.Background(), userID)
	if err != nil || u.Address != addr {
		t.Fatalf("session bound to wrong user: %+v (%v)", u, err)
	}
}

func TestLoginRejectsWrongKey(t *testing.T) {
	svc, _ := newService(t)
	priv, _ := keys.NewPrivateKey()
	other, _ := keys.NewPrivateKey()
	addr := priv.Address()

	nonce, message, err := svc.IssueNonce(context.Background(), addr)
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}

	// Signed by a key that does not hash to the claimed address.
	signature := other.Sign([]byte(message))
	publicKey := hex.EncodeToString(other.PublicKey().Bytes())

	_, _, err = svc.Login(context.Background(), addr, publicKey, hex.EncodeToString(signature), message, nonce)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestLoginRejectsTamperedMessage(t *testing.T) {
	svc, _ := newService(t)
	priv, _ := keys.NewPrivateKey()
	addr := priv.Address()

	nonce, message, err := svc.IssueNonce(context.Background(), addr)
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}

	signature := priv.Sign([]byte(message + "tampered"))
	publicKey := hex.EncodeToString(priv.PublicKey().Bytes())

	_, _, err = svc.Login(context.Background(), addr, publicKey, hex.EncodeToString(signature), message, nonce)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestLoginRejectsNonceReplay(t *testing.T) {
	svc, _ := newService(t)
	priv, _ := keys.NewPrivateKey()
	addr := priv.Address()

	nonce, message, err := svc.IssueNonce(context.Background(), addr)
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}
	signature := hex.EncodeToString(priv.Sign([]byte(message)))
	publicKey := hex.EncodeToString(priv.PublicKey().Bytes())

	if _, _, err := svc.Login(context.Background(), addr, publicKey, signature, message, nonce); err != nil {
		t.Fatalf("first login: %v", err)
	}

	// The nonce rotated on login; replaying the same signed message fails.
	_, _, err = svc.Login(context.Background(), addr, publicKey, signature, message, nonce)
	if !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("expected ErrInvalidNonce on replay, got %v", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Validate(context.Background(), "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsForgedToken(t *testing.T) {
	svc, _ := newService(t)
	store := memory.New()
	forger, err := New(store, store, []byte("other-secret"), nil)
	if err != nil {
		t.Fatalf("new forger: %v", err)
	}
	priv, _ := keys.NewPrivateKey()
	token, _ := signedLogin(t, forger, priv)

	if _, err := svc.Validate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _ := newService(t)
	priv, _ := keys.NewPrivateKey()
	token, _ := signedLogin(t, svc, priv)

	if err := svc.Logout(context.Background(), token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Validate(context.Background(), token); err == nil {
		t.Fatal("expected validation failure after logout")
	}
	// Logging out twice is a no-op.
	if err := svc.Logout(context.Background(), token); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}
