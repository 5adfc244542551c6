// Package sessions implements wallet authentication: nonce issuance,
// signature verification, and JWT-backed sessions.
package sessions

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"

	"github.com/chainwage/payroll_layer/internal/app/domain/user"
	"github.com/chainwage/payroll_layer/internal/app/storage"
	"github.com/chainwage/payroll_layer/pkg/logger"
)

// Session lifetime before re-authentication is required.
const sessionTTL = 24 * time.Hour

var (
	// ErrInvalidSignature is returned when wallet ownership cannot be proven.
	ErrInvalidSignature = errors.New("wallet ownership verification failed")
	// ErrInvalidNonce is returned when the nonce is missing, stale, or not
	// bound to the signed message.
	ErrInvalidNonce = errors.New("invalid nonce")
	// ErrInvalidToken is returned for unparseable, expired, or revoked tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the JWT claims carried by session tokens.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Service issues nonces, verifies wallet signatures, and manages sessions.
type Service struct {
	users    storage.UserStore
	sessions storage.SessionStore
	secret   []byte
	issuer   string
	log      *logger.Logger
}

// New creates a session service. secret signs JWTs and must not be empty.
func New(users storage.UserStore, sessions storage.SessionStore, secret []byte, log *logger.Logger) (*Service, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret required")
	}
	if log == nil {
		log = logger.NewDefault("sessions")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		secret:   secret,
		issuer:   "payroll-layer",
		log:      log,
	}, nil
}

// IssueNonce creates (or finds) the user for an address, stores a fresh nonce
// on it, and returns the message the wallet must sign.
func (s *Service) IssueNonce(ctx context.Context, addr string) (nonce, message string, err error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", "", fmt.Errorf("address is required")
	}

	nonce, err = generateNonce()
	if err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}

	u, err := s.users.GetUserByAddress(ctx, addr)
	if err != nil {
		u, err = s.users.CreateUser(ctx, user.User{Address: addr})
		if err != nil {
			return "", "", fmt.Errorf("create user: %w", err)
		}
	}

	if err := s.users.UpdateUserNonce(ctx, u.ID, nonce); err != nil {
		return "", "", fmt.Errorf("store nonce: %w", err)
	}

	message = fmt.Sprintf("Sign this message to authenticate with the payroll service.\n\nNonce: %s\nTimestamp: %d", nonce, time.Now().Unix())
	return nonce, message, nil
}

// Login verifies a signed nonce message and opens a session. The signature
// must verify under the supplied public key, and the key must hash to the
// claimed address.
func (s *Service) Login(ctx context.Context, addr, publicKey, signature, message, nonce string) (string, user.User, error) {
	addr = strings.TrimSpace(addr)
	if publicKey == "" || signature == "" || message == "" {
		return "", user.User{}, fmt.Errorf("publicKey, signature, and message are required: %w", ErrInvalidSignature)
	}

	if !verifyWalletSignature(addr, message, signature, publicKey) {
		return "", user.User{}, ErrInvalidSignature
	}

	u, err := s.users.GetUserByAddress(ctx, addr)
	if err != nil {
		return "", user.User{}, fmt.Errorf("user for address %s not found", addr)
	}

	// Nonce binding and one-time use.
	if nonce == "" || u.Nonce == "" || nonce != u.Nonce {
		return "", user.User{}, ErrInvalidNonce
	}
	if !strings.Contains(message, u.Nonce) {
		return "", user.User{}, fmt.Errorf("nonce not present in signed message: %w", ErrInvalidNonce)
	}

	token, err := s.generateToken(u.ID)
	if err != nil {
		return "", user.User{}, fmt.Errorf("generate token: %w", err)
	}

	sess := user.Session{
		UserID:    u.ID,
		TokenHash: HashToken(token),
		ExpiresAt: time.Now().Add(sessionTTL),
	}
	if _, err := s.sessions.CreateSession(ctx, sess); err != nil {
		return "", user.User{}, fmt.Errorf("create session: %w", err)
	}

	// Rotate the nonce to prevent replay.
	if next, err := generateNonce(); err == nil {
		_ = s.users.UpdateUserNonce(ctx, u.ID, next)
	}

	s.log.WithField("user_id", u.ID).WithField("address", u.Address).Info("wallet login")
	return token, u, nil
}

// Validate checks a session token and returns the owning user ID.
func (s *Service) Validate(ctx context.Context, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return "", ErrInvalidToken
	}

	sess, err := s.sessions.GetSessionByTokenHash(ctx, HashToken(token))
	if err != nil {
		return "", fmt.Errorf("session lookup: %w", ErrInvalidToken)
	}
	_ = s.sessions.TouchSession(ctx, sess.ID)

	return claims.UserID, nil
}

// Logout revokes the session behind a token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteSession(ctx, HashToken(token))
}

func (s *Service) generateToken(userID string) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// verifyWalletSignature checks that signature (hex) over sha256(message)
// verifies under publicKey (compressed hex) and that the key hashes to the
// claimed address.
func verifyWalletSignature(addr, message, signature, publicKey string) bool {
	pub, err := keys.NewPublicKeyFromString(publicKey)
	if err != nil {
		return false
	}
	if pub.Address() != addr {
		return false
	}

	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	digest := sha256.Sum256([]byte(message))
	return pub.Verify(sig, digest[:])
}

// HashToken returns the hex sha256 of a token, the form sessions are stored
// under.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func generateNonce() (string, error) {
	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(nonceBytes), nil
}
