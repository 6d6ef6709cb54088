package config

import (
	"github.com/namsral/flag"
)

type Config struct {
	DBConnUri        string
	DBMigrationsPath string
	SecretKey        string
	ListenAddr       string

	LogLevel string

	// Lifecycle policy knobs. MinWindowScore is the weighted activity
	// score an intensive-mode user must reach per rolling window.
	MinWindowScore   int
	QuotaWindowDays  int
	MaxItemsPerTopic int
}

// Load loads the configs from the given arguments
func (c *Config) Load(args []string) error {
	fs := flag.NewFlagSet("prisma-srs", flag.ContinueOnError)

	fs.StringVar(&c.DBConnUri, "db-conn-uri", "", "the postgres database connection URI")
	fs.StringVar(&c.DBMigrationsPath, "db-migrations-path", "file://db/migrations", "the path where the migrations live")
	fs.StringVar(&c.SecretKey, "secret-key", "", "the JWT secret key")
	fs.StringVar(&c.ListenAddr, "listen-addr", ":8280", "the address to listen on")
	fs.StringVar(&c.LogLevel, "log-level", "info", "log level")
	fs.IntVar(&c.MinWindowScore, "min-window-score", 30, "minimum weighted activity score per quota window")
	fs.IntVar(&c.QuotaWindowDays, "quota-window-days", 7, "default quota window, in days, for new intensive users")
	fs.IntVar(&c.MaxItemsPerTopic, "max-items-per-topic", 1000, "cap on items returned by topic listings")
	err := fs.Parse(args)
	return err
}
