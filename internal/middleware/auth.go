package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// OwnerContextKey 是存储在 context 中的 owner ID 的键。
type OwnerContextKey struct{}

// AuthOptions 描述可接受的凭证。
type AuthOptions struct {
	APIKeys   []string
	JWTSecret string // HS256 共享密钥
	JWKSURL   string // RS256/ES256 公钥地址
	Logger    *slog.Logger
}

// Auth 创建鉴权中间件，接受两种请求头：
//
//	Authorization: ApiKey <token>
//	Authorization: Bearer <jwt>
//
// 验证成功后将 API Key 或 JWT 的 sub 作为 owner_id 存入 context。
func Auth(opts AuthOptions) func(http.Handler) http.Handler {
	keySet := make(map[string]struct{}, len(opts.APIKeys))
	for _, key := range opts.APIKeys {
		trimmed := strings.TrimSpace(key)
		if trimmed != "" {
			keySet[trimmed] = struct{}{}
		}
	}
	verifier := newTokenVerifier(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, credential, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			credential = strings.TrimSpace(credential)
			if !ok || credential == "" {
				writeAuthError(w, http.StatusUnauthorized, "expected Authorization: ApiKey <token> or Bearer <jwt>")
				return
			}

			var owner string
			switch scheme {
			case "ApiKey":
				if _, valid := keySet[credential]; !valid {
					writeAuthError(w, http.StatusUnauthorized, "invalid API key")
					return
				}
				owner = credential
			case "Bearer":
				sub, err := verifier.verify(credential)
				if err != nil {
					writeAuthError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				owner = sub
			default:
				writeAuthError(w, http.StatusUnauthorized, "unsupported authorization scheme")
				return
			}

			ctx := context.WithValue(r.Context(), OwnerContextKey{}, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOwnerID 从 context 中获取经过鉴权的 owner ID。
func GetOwnerID(ctx context.Context) string {
	if v, ok := ctx.Value(OwnerContextKey{}).(string); ok {
		return v
	}
	return ""
}

type tokenVerifier struct {
	secret []byte
	jwks   *keyfunc.JWKS
}

func newTokenVerifier(opts AuthOptions) *tokenVerifier {
	v := &tokenVerifier{}
	if opts.JWTSecret != "" {
		v.secret = []byte(opts.JWTSecret)
	}
	if opts.JWKSURL != "" {
		jwks, err := keyfunc.Get(opts.JWKSURL, keyfunc.Options{
			RefreshInterval: time.Hour,
			RefreshErrorHandler: func(err error) {
				if opts.Logger != nil {
					opts.Logger.Error("jwks refresh failed", "error", err)
				}
			},
		})
		if err != nil {
			if opts.Logger != nil {
				opts.Logger.Warn("jwks init failed, only HMAC tokens accepted", "url", opts.JWKSURL, "error", err)
			}
		} else {
			v.jwks = jwks
		}
	}
	return v
}

func (v *tokenVerifier) verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
			if v.secret != nil {
				return v.secret, nil
			}
			return nil, fmt.Errorf("hmac tokens not accepted")
		}
		if v.jwks != nil {
			return v.jwks.Keyfunc(token)
		}
		return nil, fmt.Errorf("no suitable verification method")
	})
	if err != nil {
		return "", err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `ApiKey realm="dropkeep", Bearer realm="dropkeep"`)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
