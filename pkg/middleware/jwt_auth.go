package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"compress-service/pkg/config"
	"compress-service/pkg/errno"
	"compress-service/pkg/restapi"
)

// Claims JWT 载荷：subject 为用户ID，role 控制管理权限
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthMiddleware validates HS256 bearer tokens and overrides any header identity.
func JWTAuthMiddleware(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		token, found := strings.CutPrefix(raw, "Bearer ")
		if !found || token == "" {
			restapi.Failed(c, errno.ErrUnauthorized)
			return
		}
		claims, err := ParseToken(cfg, token)
		if err != nil {
			restapi.Failed(c, errno.NewBizError(errno.ErrUnauthorized, err))
			return
		}
		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextIsAdmin, cfg.AdminRole != "" && claims.Role == cfg.AdminRole)
		c.Next()
	}
}

// ParseToken verifies signature, expiry and issuer.
func ParseToken(cfg config.JWTConfig, token string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// IssueToken signs a token; used by the CLI and tests.
func IssueToken(cfg config.JWTConfig, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}
