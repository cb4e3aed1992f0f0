// Package auth is the external identity/token gateway: it verifies who a
// user is and issues media-session credentials. The relay core only calls
// through the Gateway interface.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vkotler/micstage/internal/domain"
)

// Credential is what a client needs to open a media session with the video
// SDK. In test mode (no signing key configured) the signature is a fixed
// placeholder so local development works without cloud credentials.
type Credential struct {
	UserID     string `json:"userId"`
	AppID      int    `json:"sdkAppId"`
	UserSig    string `json:"userSig"`
	ExpireTime int    `json:"expireTime"`
	Mode       string `json:"mode"`
}

type Gateway interface {
	VerifyIdentity(ctx context.Context, token string) (string, error)
	IssueMediaCredential(ctx context.Context, userID string) (Credential, error)
}

// HMACGateway verifies HS256 identity tokens and signs media credentials with
// the same style of HMAC-SHA256 user signature the video SDK expects.
type HMACGateway struct {
	secret []byte
	appID  int
	ttl    time.Duration
	now    func() time.Time
}

func New(secret string, appID int, ttl time.Duration) *HMACGateway {
	return &HMACGateway{
		secret: []byte(secret),
		appID:  appID,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Configured reports whether real credentials can be issued.
func (g *HMACGateway) Configured() bool {
	return len(g.secret) > 0 && g.appID != 0
}

// VerifyIdentity parses an HS256 JWT and returns its subject as the identity.
// Any parse, signature or claim failure maps onto ErrAuthFailed.
func (g *HMACGateway) VerifyIdentity(_ context.Context, token string) (string, error) {
	if !g.Configured() {
		return "", fmt.Errorf("%w: gateway not configured", domain.ErrAuthFailed)
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrAuthFailed)
	}
	return claims.Subject, nil
}

// IssueMediaCredential signs a user sig for the given user id. When the
// gateway is not configured it falls back to test mode instead of failing,
// so the room features stay usable without a media backend.
func (g *HMACGateway) IssueMediaCredential(_ context.Context, userID string) (Credential, error) {
	if !g.Configured() {
		return Credential{
			UserID:     userID,
			AppID:      0,
			UserSig:    "test_signature_for_development",
			ExpireTime: int(g.ttl.Seconds()),
			Mode:       "test",
		}, nil
	}
	return Credential{
		UserID:     userID,
		AppID:      g.appID,
		UserSig:    g.userSig(userID),
		ExpireTime: int(g.ttl.Seconds()),
		Mode:       "production",
	}, nil
}

// userSig builds "start:expire:signature" where the signature is the
// base64-encoded HMAC-SHA256 over the canonical TLS lines.
func (g *HMACGateway) userSig(userID string) string {
	start := g.now().Unix()
	expire := start + int64(g.ttl.Seconds())
	content := fmt.Sprintf(
		"TLS.identifier:%s\nTLS.sdkappid:%d\nTLS.time:%d\nTLS.expire:%d\n",
		userID, g.appID, start, expire,
	)
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(content))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("%d:%d:%s", start, expire, sig)
}
