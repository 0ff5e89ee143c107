package security

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lk2023060901/cargorelay/pkg/config"
)

// JWTConfig JWT 配置
type JWTConfig struct {
	// 签名密钥（HS256 等对称算法）
	SecretKey string `mapstructure:"secret_key" json:"secret_key"`

	// 公钥文件路径（RS/ES 算法验证）
	PublicKeyFile string `mapstructure:"public_key_file" json:"public_key_file"`

	// 私钥文件路径（RS/ES 算法签名，仅签发方需要）
	PrivateKeyFile string `mapstructure:"private_key_file" json:"private_key_file"`

	// 签名算法，默认 HS256
	Algorithm string `mapstructure:"algorithm" json:"algorithm" validate:"omitempty,oneof=HS256 HS384 HS512 RS256 RS384 RS512 ES256 ES384 ES512"`

	// Token 有效期，默认 24 小时
	ExpiresIn time.Duration `mapstructure:"expires_in" json:"expires_in"`

	// 签发者，非空时校验 iss
	Issuer string `mapstructure:"issuer" json:"issuer"`

	// 允许的时钟偏差
	Leeway time.Duration `mapstructure:"leeway" json:"leeway"`
}

// DefaultJWTConfig 默认配置
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		Algorithm: "HS256",
		ExpiresIn: 24 * time.Hour,
		Leeway:    5 * time.Second,
	}
}

// Claims 令牌载荷
// 用户 id 优先取 sub，兼容旧签发方写入的 userId
type Claims struct {
	jwt.RegisteredClaims

	UserID      string   `json:"userId,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Principal 转换为调用方身份
func (c *Claims) Principal() (*Principal, error) {
	id := c.Subject
	if id == "" {
		id = c.UserID
	}
	if id == "" {
		return nil, ErrSubjectMissing
	}
	return &Principal{
		UserID:      id,
		Role:        c.Role,
		Permissions: append([]string(nil), c.Permissions...),
	}, nil
}

// JWTManager JWT 签发与校验
type JWTManager struct {
	config     *JWTConfig
	method     jwt.SigningMethod
	publicKey  any
	privateKey any
	parser     *jwt.Parser
}

var _ TokenVerifier = (*JWTManager)(nil)

// NewJWTManager 创建 JWT 管理器
func NewJWTManager(cfg *JWTConfig) (*JWTManager, error) {
	newCfg, err := config.MergeConfig(DefaultJWTConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(newCfg); err != nil {
		return nil, err
	}

	method := jwt.GetSigningMethod(strings.ToUpper(newCfg.Algorithm))
	if method == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlgorithmInvalid, newCfg.Algorithm)
	}

	m := &JWTManager{config: newCfg, method: method}
	if err := m.loadKeys(); err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithLeeway(newCfg.Leeway),
	}
	if newCfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(newCfg.Issuer))
	}
	m.parser = jwt.NewParser(opts...)
	return m, nil
}

func (m *JWTManager) loadKeys() error {
	alg := m.method.Alg()

	switch {
	case strings.HasPrefix(alg, "HS"):
		if m.config.SecretKey == "" {
			return ErrSecretKeyEmpty
		}
	case strings.HasPrefix(alg, "RS"), strings.HasPrefix(alg, "ES"):
		if m.config.PublicKeyFile != "" {
			key, err := loadPublicKey(m.config.PublicKeyFile, alg)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrPublicKeyLoad, err)
			}
			m.publicKey = key
		}
		if m.config.PrivateKeyFile != "" {
			key, err := loadPrivateKey(m.config.PrivateKeyFile, alg)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrPrivateKeyLoad, err)
			}
			m.privateKey = key
		}
	}
	return nil
}

// GenerateToken 为 principal 签发 token
func (m *JWTManager) GenerateToken(p *Principal) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.ExpiresIn)),
		},
		Role:        p.Role,
		Permissions: p.Permissions,
	}
	return m.Sign(claims)
}

// Sign 按配置算法签名任意 claims
func (m *JWTManager) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(m.method, claims)
	if strings.HasPrefix(m.method.Alg(), "HS") {
		return token.SignedString([]byte(m.config.SecretKey))
	}
	return token.SignedString(m.privateKey)
}

// ParseClaims 校验签名与时效并返回 claims
func (m *JWTManager) ParseClaims(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	claims := &Claims{}
	token, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.verifyKey(), nil
	})
	if err != nil {
		return nil, wrapError(err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Verify 实现 TokenVerifier
func (m *JWTManager) Verify(_ context.Context, token string) (*Principal, error) {
	claims, err := m.ParseClaims(token)
	if err != nil {
		return nil, err
	}
	return claims.Principal()
}

func (m *JWTManager) verifyKey() any {
	if strings.HasPrefix(m.method.Alg(), "HS") {
		return []byte(m.config.SecretKey)
	}
	return m.publicKey
}

func wrapError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotValidYet
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrAlgorithmMismatch, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}

func loadPublicKey(file, alg string) (any, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(alg, "RS") {
		return jwt.ParseRSAPublicKeyFromPEM(data)
	}
	return jwt.ParseECPublicKeyFromPEM(data)
}

func loadPrivateKey(file, alg string) (any, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(alg, "RS") {
		return jwt.ParseRSAPrivateKeyFromPEM(data)
	}
	return jwt.ParseECPrivateKeyFromPEM(data)
}
