package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultIssuer   = "agentic-gateway"
	DefaultTokenTTL = 24 * time.Hour
)

var (
	ErrMissingSecret = errors.New("jwt secret is not configured")
	ErrInvalidHeader = errors.New("invalid authorization header format")
)

// Config JWT 配置；JWTSecret 为空时不启用认证
type Config struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTIssuer string        `mapstructure:"jwt_issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Enabled 是否启用 JWT 认证
func (c *Config) Enabled() bool {
	return c != nil && c.JWTSecret != ""
}

// Claims JWT 声明
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager JWT 管理器
type JWTManager struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

// NewJWTManager 创建 JWT 管理器
func NewJWTManager(cfg *Config) (*JWTManager, error) {
	if !cfg.Enabled() {
		return nil, ErrMissingSecret
	}

	issuer := cfg.JWTIssuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &JWTManager{
		secretKey: []byte(cfg.JWTSecret),
		issuer:    issuer,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// GenerateToken 为调用方签发 Access Token
func (m *JWTManager) GenerateToken(subject, scope string) (string, error) {
	now := m.now()
	claims := &Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// TTL 签发令牌的有效期
func (m *JWTManager) TTL() time.Duration {
	return m.ttl
}

// VerifyToken 验证 Access Token，签名算法必须为 HMAC 且签发者一致
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ExtractTokenFromHeader 从 Authorization header 提取 token
// 格式：Authorization: Bearer <token>
func ExtractTokenFromHeader(authHeader string) (string, error) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidHeader
	}
	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if token == "" {
		return "", ErrInvalidHeader
	}
	return token, nil
}
