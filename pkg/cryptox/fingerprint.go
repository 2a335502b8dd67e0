package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
)

// FingerprintMode selects which request metadata is folded into a device
// fingerprint. Binding to the raw IP breaks legitimate users behind rotating
// NATs or mobile carriers, so the granularity is configurable rather than
// hard-coded.
type FingerprintMode string

const (
	// FingerprintIPUA binds to both the client IP and User-Agent.
	FingerprintIPUA FingerprintMode = "ip_ua"
	// FingerprintUA binds to the User-Agent only.
	FingerprintUA FingerprintMode = "ua"
	// FingerprintOff disables device binding entirely.
	FingerprintOff FingerprintMode = "off"
)

// ParseFingerprintMode maps a config string to a FingerprintMode, defaulting
// to the strictest binding for unrecognised values.
func ParseFingerprintMode(s string) FingerprintMode {
	switch FingerprintMode(s) {
	case FingerprintUA:
		return FingerprintUA
	case FingerprintOff:
		return FingerprintOff
	default:
		return FingerprintIPUA
	}
}

// DeviceFingerprint derives an opaque fingerprint from request metadata
// according to mode. The same (mode, ip, ua) always produce the same value.
// Returns "" when binding is disabled.
func DeviceFingerprint(mode FingerprintMode, ip, userAgent string) string {
	var material string
	switch mode {
	case FingerprintOff:
		return ""
	case FingerprintUA:
		material = userAgent
	default:
		material = ip + "|" + userAgent
	}

	sum := sha256.Sum256([]byte(material))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
