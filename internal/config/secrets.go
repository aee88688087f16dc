package config

import (
	"net/url"
	"slices"
)

const redacted = "***"

// RedactedConfig returns a copy of cfg that is safe to log or print. Keys,
// passwords and tokens become "***"; a URL-style Postgres DSN keeps its host
// and database so operators can still see where the node connects.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	for _, s := range []*string{
		&out.Operator.PrivateKey,
		&out.Operator.KeyPassword,
		&out.Postgres.Password,
		&out.Redis.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Server.APIKey,
		&out.Notify.TelegramToken,
		&out.Notify.DiscordWebhookURL,
	} {
		redact(s)
	}
	out.Postgres.DSN = redactDSN(cfg.Postgres.DSN)

	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Genesis.Accounts = slices.Clone(cfg.Genesis.Accounts)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// redactDSN masks the password of a postgres:// URL. Keyword/value DSNs
// are masked whole.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return redacted
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redacted)
		}
	}
	return u.String()
}
