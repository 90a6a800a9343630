package config

import (
	"strings"
	"time"
)

// Integration environment published by the provider for merchants that have
// not been certified yet.  Production deployments override all three.
const (
	defaultWebpayBaseURL      = "https://webpay3gint.transbank.cl/rswebpaytransaction/api/webpay/v1.2"
	defaultWebpayCommerceCode = "597055555532"
	defaultWebpayAPISecret    = "579B532A7440BB0C9079DED94D31EA1615BACEB56610332264630D42D0A36B1C"
)

// WebpayConfig carries the credentials and limits for the Webpay Plus REST
// API.  APISecretARN, when set, names an AWS Secrets Manager secret that
// replaces APISecret at startup.
type WebpayConfig struct {
	BaseURL      string
	CommerceCode string
	APISecret    string
	APISecretARN string
	Timeout      time.Duration
	UserAgent    string
}

// LoadWebpayConfig reads WEBPAY_* variables, falling back to the public
// integration environment.
func LoadWebpayConfig() WebpayConfig {
	return WebpayConfig{
		BaseURL:      strings.TrimRight(envStr("WEBPAY_BASE_URL", defaultWebpayBaseURL), "/"),
		CommerceCode: envStr("WEBPAY_COMMERCE_CODE", defaultWebpayCommerceCode),
		APISecret:    envStr("WEBPAY_API_SECRET", defaultWebpayAPISecret),
		APISecretARN: envStr("WEBPAY_API_SECRET_ARN", ""),
		Timeout:      envDur("WEBPAY_TIMEOUT", 15*time.Second),
		UserAgent:    envStr("WEBPAY_USER_AGENT", "AltamontanaApi/1.0"),
	}
}
