package telegram

// Config holds Bot API transport configuration.
// Token is optional so environments without a bot (local development, CI)
// can run with telegram delivery disabled.
type Config struct {
	Token      string `env:"TELEGRAM_BOT_TOKEN"`
	RatePerSec int    `env:"TELEGRAM_RATE_PER_SEC" envDefault:"20"`
}
