// Package security はドキュメントのクラウドリンク検証と、バックエンド由来テキストの無害化を提供する。
package security

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"

	"github.com/hitoshi/sbadash/internal/model"
)

// LinkGuard はユーザーが入力したクラウドリンクを検証する。
type LinkGuard interface {
	// ValidateURL はDNS解決を伴わない静的な検証を行う。
	// 問題がある場合は表示用メッセージを持つVALIDATION_FAILEDを返す。
	ValidateURL(rawURL string) error
	// CheckReachable はSSRF防止付きクライアントでリンク先に到達できるかを確認する。
	CheckReachable(ctx context.Context, rawURL string) error
}

// allowedSchemes はクラウドリンクに許可するURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は内部ネットワークを指すリンクを拒否するためのアドレス範囲。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// linkGuard はLinkGuardの実装。
type linkGuard struct {
	client *http.Client
}

// NewLinkGuard はLinkGuardを生成する。timeoutは到達確認1回あたりの上限。
func NewLinkGuard(timeout time.Duration) *linkGuard {
	return &linkGuard{client: NewSafeClient(timeout)}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスも検証するため、
// プライベートアドレスへ解決されるホスト名も拒否される。
func NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はクラウドリンクを静的に検証する。
func (g *linkGuard) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return model.NewValidationError("Cloud link is empty.")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return model.NewValidationError("Cloud link is not a valid URL.")
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return model.NewValidationError("Cloud link must start with http:// or https://.")
	}

	host := parsed.Hostname()
	if host == "" {
		return model.NewValidationError("Cloud link must include a host.")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return model.NewValidationError(fmt.Sprintf("Cloud link points to a private address (%s).", ip.String()))
		}
		return nil
	}

	if isBlockedHostname(host) {
		return model.NewValidationError(fmt.Sprintf("Cloud link points to a private host (%s).", host))
	}
	return nil
}

// CheckReachable はリンク先にHEADリクエストを送り、4xx/5xx以外であれば到達可能とみなす。
func (g *linkGuard) CheckReachable(ctx context.Context, rawURL string) error {
	if err := g.ValidateURL(rawURL); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return model.NewValidationError("Cloud link is not a valid URL.")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  "Cloud link could not be reached.",
			Category: "validation",
			Action:   "共有設定とURLを確認してください。",
			Err:      err,
		}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return model.NewValidationError(fmt.Sprintf("Cloud link returned status %d.", resp.StatusCode))
	}
	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

var blockedHostnames = []string{
	"localhost",
}

func isBlockedHostname(host string) bool {
	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	for _, blocked := range blockedHostnames {
		if lower == blocked || strings.HasSuffix(lower, "."+blocked) {
			return true
		}
	}
	return false
}
