package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// RPC URLs often embed a provider API key.
	redact(&out.RPC.URL)

	// Wallet
	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	// Ledger
	redact(&out.Ledger.DSN)
	redact(&out.Ledger.Password)

	// Lock
	redact(&out.Lock.Password)

	// Archive
	redact(&out.Archive.AccessKey)
	redact(&out.Archive.SecretKey)

	// Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Deployment.Variants != nil {
		out.Deployment.Variants = append([]string(nil), cfg.Deployment.Variants...)
	}
	if cfg.Deployment.StrikePrices != nil {
		out.Deployment.StrikePrices = append([]Decimal(nil), cfg.Deployment.StrikePrices...)
	}

	// Copy maps so mutations to the redacted copy do not affect the original.
	if cfg.Networks != nil {
		out.Networks = make(map[string]NetworkConfig, len(cfg.Networks))
		for k, v := range cfg.Networks {
			out.Networks[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
