package robinhood

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// 签名相关的构造期错误，属于配置问题，不可重试。
var (
	ErrMissingCredentials = errors.New("missing api credentials")
	ErrInvalidPrivateKey  = errors.New("invalid private key")
)

// 认证头名称
const (
	headerAPIKey    = "x-api-key"
	headerTimestamp = "x-timestamp"
	headerSignature = "x-signature"
)

// Signer 使用 Ed25519 私钥对请求签名。
type Signer struct {
	apiKey string
	key    ed25519.PrivateKey
}

// NewSigner 解析 base64 编码的私钥并构造签名器。
// 私钥缺失或格式错误在这里立即失败，不会等到第一次请求。
func NewSigner(apiKey, base64PrivateKey string) (*Signer, error) {
	if apiKey == "" || base64PrivateKey == "" {
		return nil, ErrMissingCredentials
	}

	raw, err := base64.StdEncoding.DecodeString(base64PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	var key ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(raw)
	default:
		return nil, fmt.Errorf("%w: unexpected key length %d", ErrInvalidPrivateKey, len(raw))
	}

	return &Signer{apiKey: apiKey, key: key}, nil
}

// Headers 生成一次请求所需的三个认证头。
// 签名串为 apiKey + timestamp + path + method + body 的原样拼接。
func (s *Signer) Headers(method, path, body string, at time.Time) map[string]string {
	timestamp := strconv.FormatInt(at.UTC().Unix(), 10)
	message := s.apiKey + timestamp + path + method + body
	signature := ed25519.Sign(s.key, []byte(message))

	return map[string]string{
		headerAPIKey:    s.apiKey,
		headerTimestamp: timestamp,
		headerSignature: base64.StdEncoding.EncodeToString(signature),
	}
}
