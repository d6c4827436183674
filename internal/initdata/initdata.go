// Package initdata validates the signed init data string a Telegram Mini App
// receives from its host.
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const webAppDataKey = "WebAppData"

var (
	ErrEmpty           = errors.New("init data is empty")
	ErrMalformed       = errors.New("init data is malformed")
	ErrHashMissing     = errors.New("init data hash is missing")
	ErrHashMismatch    = errors.New("init data hash mismatch")
	ErrAuthDateMissing = errors.New("init data auth_date is missing")
	ErrExpired         = errors.New("init data expired")
	ErrUserMissing     = errors.New("init data carries no user")
)

// User is the Telegram user embedded in init data.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
	IsBot        bool   `json:"is_bot,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// Data is parsed init data.
type Data struct {
	QueryID  string
	User     *User
	AuthDate time.Time
	Hash     string
	Raw      url.Values
}

// Parse decodes init data without checking its signature.
func Parse(initData string) (*Data, error) {
	if strings.TrimSpace(initData) == "" {
		return nil, ErrEmpty
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	data := &Data{QueryID: values.Get("query_id"), Hash: values.Get("hash"), Raw: values}
	if raw := values.Get("auth_date"); raw != "" {
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: auth_date: %v", ErrMalformed, err)
		}
		data.AuthDate = time.Unix(unix, 0)
	}
	if raw := values.Get("user"); raw != "" {
		var user User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, fmt.Errorf("%w: user: %v", ErrMalformed, err)
		}
		data.User = &user
	}
	return data, nil
}

// Validate checks the signature of initData against botToken and, when
// maxAge is positive, that auth_date is no older than maxAge.
func Validate(initData, botToken string, maxAge time.Duration, now time.Time) (*Data, error) {
	data, err := Parse(initData)
	if err != nil {
		return nil, err
	}
	if data.Hash == "" {
		return nil, ErrHashMissing
	}

	expected := sign(data.Raw, botToken)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(data.Hash))) {
		return nil, ErrHashMismatch
	}

	if maxAge > 0 {
		if data.AuthDate.IsZero() {
			return nil, ErrAuthDateMissing
		}
		if now.Sub(data.AuthDate) > maxAge {
			return nil, ErrExpired
		}
	}
	return data, nil
}

// Sign returns values encoded as init data with a valid hash appended.
func Sign(values url.Values, botToken string) string {
	signed := url.Values{}
	for k, v := range values {
		if k != "hash" {
			signed[k] = v
		}
	}
	signed.Set("hash", sign(signed, botToken))
	return signed.Encode()
}

func sign(values url.Values, botToken string) string {
	secret := hmacSHA256([]byte(webAppDataKey), []byte(botToken))
	return hex.EncodeToString(hmacSHA256(secret, []byte(dataCheckString(values))))
}

// dataCheckString joins every field but hash as sorted key=value lines.
func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	return strings.Join(lines, "\n")
}

func hmacSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}
