package flags

import (
	"github.com/givemart/givemart/internal/config"
)

// operator tokens
var (
	AuthSigningSecret = config.GenFlag("auth.jwt.secret", "", "HMAC secret for operator tokens. GIVEMART_AUTH_SECRET overrides it")
	AuthIssuer        = config.GenFlag("auth.jwt.issuer", "givemart", "Issuer written to and required in operator tokens")
)

var OtelEnabled = config.GenFlag("integrations.otel.enabled", false, "Export traces, metrics and logs over OTLP")
