package config

import (
	"flag"
	"io"
)

// flagValues holds parsed flags until they are laid over the config.
type flagValues struct {
	configPath string
	listen     string
	env        string
	dbDriver   string
	dbDSN      string
	kvBackend  string
	redisURL   string
	boltPath   string
	logLevel   string
	logFormat  string
	metrics    bool
	trustProxy bool
	version    bool
}

// newFlagSet defines the server flags:
//
//	-config string     YAML config file
//	-listen string     HTTP listen address
//	-env string        development | production
//	-db-driver string  sqlite | postgres
//	-db-dsn string     database DSN or SQLite path
//	-kv string         redis | bolt
//	-redis-url string  Redis URL
//	-bolt-path string  bbolt file path
//	-log-level string  debug | info | warn | error
//	-log-format string text | json
//	-metrics           expose /metrics
//	-trust-proxy       read client IP from proxy headers
//	-version           print version and exit
func newFlagSet() (*flag.FlagSet, *flagValues) {
	fv := &flagValues{}
	fs := flag.NewFlagSet("commentauth", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&fv.configPath, "config", "", "YAML config file")
	fs.StringVar(&fv.listen, "listen", "", "HTTP listen address")
	fs.StringVar(&fv.env, "env", "", "development or production")
	fs.StringVar(&fv.dbDriver, "db-driver", "", "database driver: sqlite or postgres")
	fs.StringVar(&fv.dbDSN, "db-dsn", "", "database DSN")
	fs.StringVar(&fv.kvBackend, "kv", "", "key-value backend: redis or bolt")
	fs.StringVar(&fv.redisURL, "redis-url", "", "Redis URL")
	fs.StringVar(&fv.boltPath, "bolt-path", "", "bbolt file path")
	fs.StringVar(&fv.logLevel, "log-level", "", "log level")
	fs.StringVar(&fv.logFormat, "log-format", "", "log format: text or json")
	fs.BoolVar(&fv.metrics, "metrics", false, "expose Prometheus metrics")
	fs.BoolVar(&fv.trustProxy, "trust-proxy", false, "trust proxy headers for client IP")
	fs.BoolVar(&fv.version, "version", false, "show version information")

	return fs, fv
}

// apply copies only the flags that were given on the command line.
func (fv *flagValues) apply(fs *flag.FlagSet, c *Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			c.Listen = fv.listen
		case "env":
			c.Env = fv.env
		case "db-driver":
			c.Database.Driver = fv.dbDriver
		case "db-dsn":
			c.Database.DSN = fv.dbDSN
		case "kv":
			c.KV.Backend = fv.kvBackend
		case "redis-url":
			c.KV.RedisURL = fv.redisURL
		case "bolt-path":
			c.KV.BoltPath = fv.boltPath
		case "log-level":
			c.Log.Level = fv.logLevel
		case "log-format":
			c.Log.Format = fv.logFormat
		case "metrics":
			c.Metrics = fv.metrics
		case "trust-proxy":
			c.TrustProxy = fv.trustProxy
		case "version":
			c.ShowVersion = fv.version
		}
	})
}
