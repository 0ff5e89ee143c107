package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
)

// HashAlgorithm HMAC 哈希算法
type HashAlgorithm int

const (
	SHA256 HashAlgorithm = iota
	SHA512
)

// HMACSigner 对出站请求体签名，接收方用同一密钥校验
type HMACSigner struct {
	key     []byte
	newHash func() hash.Hash
}

// NewHMACSigner 创建签名器，默认 SHA-256
func NewHMACSigner(key []byte, algo ...HashAlgorithm) *HMACSigner {
	s := &HMACSigner{key: key, newHash: sha256.New}
	if len(algo) > 0 && algo[0] == SHA512 {
		s.newHash = sha512.New
	}
	return s
}

// Sign 依次写入各段数据，返回十六进制签名
func (s *HMACSigner) Sign(parts ...[]byte) string {
	mac := hmac.New(s.newHash, s.key)
	for _, p := range parts {
		mac.Write(p)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 常量时间比较签名
func (s *HMACSigner) Verify(signature string, parts ...[]byte) (bool, error) {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("crypto: invalid signature encoding: %w", err)
	}
	want, _ := hex.DecodeString(s.Sign(parts...))
	return hmac.Equal(got, want), nil
}
