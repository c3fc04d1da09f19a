package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrBlockedEndpoint は検証で拒否されたエンドポイントを表す。
var ErrBlockedEndpoint = errors.New("blocked gateway endpoint")

// SSRFGuardService はゲートウェイへの外向きリクエストを保護する。
// GATEWAY_SSRF_GUARDが有効な場合、起動時にエンドポイントURLを検証し、
// ゲートウェイクライアントにはNewSafeClientのクライアントを使う。
type SSRFGuardService interface {
	// NewSafeClient はsafeurlでラップしたHTTPクライアントを生成する。
	// プライベートIP、ループバック、リンクローカル、メタデータIPへの接続は
	// DNS解決後のDialer段階でブロックされる。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateEndpoints はエンドポイントURLを静的に検証する。
	// 最初に拒否されたURLのエラーを返す。
	ValidateEndpoints(rawURLs ...string) error
}

// allowedSchemes はゲートウェイURLとして許可するスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedPrefixes は静的検証で拒否するアドレス範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),     // RFC 1918
	netip.MustParsePrefix("172.16.0.0/12"),  // RFC 1918
	netip.MustParsePrefix("192.168.0.0/16"), // RFC 1918
	netip.MustParsePrefix("127.0.0.0/8"),    // ループバック
	netip.MustParsePrefix("169.254.0.0/16"), // リンクローカル（メタデータIPを含む）
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// blockedHostnames は静的検証で拒否するホスト名。
var blockedHostnames = map[string]struct{}{
	"localhost": {},
}

// ssrfGuard はSSRFGuardServiceの実装。
type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardServiceの新しいインスタンスを生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを生成する。
// ポートは80/443のみ許可する。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateEndpoints は各URLのスキーム・ホストを検証する。
// DNS解決は行わないため、DNS再バインディングはNewSafeClient側で防ぐ。
func (g *ssrfGuard) ValidateEndpoints(rawURLs ...string) error {
	for _, raw := range rawURLs {
		if err := validateEndpoint(raw); err != nil {
			return err
		}
	}
	return nil
}

func validateEndpoint(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty URL", ErrBlockedEndpoint)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedEndpoint, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: disallowed scheme %q", ErrBlockedEndpoint, parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty host in %s", ErrBlockedEndpoint, raw)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("%w: address %s is in %s", ErrBlockedEndpoint, addr, p)
			}
		}
		return nil
	}

	if _, blocked := blockedHostnames[strings.ToLower(host)]; blocked {
		return fmt.Errorf("%w: host %s", ErrBlockedEndpoint, host)
	}

	return nil
}
