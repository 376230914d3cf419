package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host      string `env:"HOST,required=true"`
	Port      int    `env:"PORT,required=true"`
	AdminPort int    `env:"ADMIN_PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH"`

	AuthVerifyURL     string        `env:"AUTH_VERIFY_URL,required=true"`
	AuthVerifyTimeout time.Duration `env:"AUTH_VERIFY_TIMEOUT,required=true"`
	AdminTokenSecret  string        `env:"ADMIN_TOKEN_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,required=true"`
	PongTimeout  time.Duration `env:"PONG_TIMEOUT,required=true"`
	PingInterval time.Duration `env:"PING_INTERVAL,required=true"`

	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,required=true"`

	SearchPageSize int `env:"SEARCH_PAGE_SIZE,required=true"`

	MetricInterval time.Duration `env:"METRIC_INTERVAL,required=true"`
	CPUThreshold   float64       `env:"CPU_THRESHOLD,required=true"`
	RAMThreshold   float32       `env:"RAM_THRESHOLD,required=true"`

	LogLevel string `env:"LOG_LEVEL,required=true"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// WordList splits a comma-separated env value into trimmed, non-empty
// entries.
func WordList(raw string) []string {
	var words []string
	for _, w := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(w); trimmed != "" {
			words = append(words, trimmed)
		}
	}
	return words
}
