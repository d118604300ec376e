package utils

import "strings"

// The game runs as a Telegram mini app; requests should look like they come
// from the in-app webview.
const defaultMobileUserAgent = "Mozilla/5.0 (Linux; Android 13; Pixel 7 Build/TQ3A.230805.001; wv) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Chrome/126.0.6478.134 Mobile Safari/537.36 Telegram-Android/11.0.0"

// DefaultMobileUserAgent returns the webview UA used when none is configured.
func DefaultMobileUserAgent() string {
	return defaultMobileUserAgent
}

// NormalizeMobileUserAgent keeps ua when it already looks like a phone
// browser and falls back to the default webview UA otherwise.
func NormalizeMobileUserAgent(ua string) string {
	v := strings.TrimSpace(ua)
	if v == "" {
		return defaultMobileUserAgent
	}
	if looksLikeMobileUA(v) {
		return v
	}
	return defaultMobileUserAgent
}

func looksLikeMobileUA(ua string) bool {
	s := strings.ToLower(ua)
	if strings.Contains(s, "telegram") || strings.Contains(s, "mobile") {
		return true
	}
	if strings.Contains(s, "iphone") || strings.Contains(s, "android") || strings.Contains(s, "ipad") {
		return true
	}
	return false
}

// MaskSecret keeps the last n characters of s and replaces the rest with '*'.
func MaskSecret(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	return strings.Repeat("*", len(s)-n) + s[len(s)-n:]
}
