package haystack

import "go.uber.org/zap"

// Option configures a Backend.
type Option func(*backendConfig)

type backendConfig struct {
	driver string

	// sqlite
	path string

	// redis
	addrs     []string
	username  string
	password  string
	db        int
	keyPrefix string

	stemmingLanguage string
	noStemming       bool
	spelling         bool
	log              *zap.Logger
}

// WithSQLite stores the index in a single sqlite file at path.
func WithSQLite(path string) Option {
	return func(c *backendConfig) {
		c.driver = "sqlite"
		c.path = path
	}
}

// WithRedis stores the index in Redis.
func WithRedis(addrs ...string) Option {
	return func(c *backendConfig) {
		c.driver = "redis"
		c.addrs = addrs
	}
}

// WithRedisAuth sets Redis credentials and logical database.
func WithRedisAuth(username, password string, db int) Option {
	return func(c *backendConfig) {
		c.username = username
		c.password = password
		c.db = db
	}
}

// WithKeyPrefix namespaces every Redis key. Defaults to "haystack:".
func WithKeyPrefix(prefix string) Option {
	return func(c *backendConfig) {
		c.keyPrefix = prefix
	}
}

// WithStemming selects the snowball stemming language ("english",
// "russian", ...). Indexing and querying must agree on it. Backends stem
// with "english" unless WithoutStemming is given.
func WithStemming(language string) Option {
	return func(c *backendConfig) {
		c.stemmingLanguage = language
	}
}

// WithoutStemming disables stemming entirely.
func WithoutStemming() Option {
	return func(c *backendConfig) {
		c.noStemming = true
	}
}

// WithSpelling enables spelling suggestions for searches that request them.
func WithSpelling() Option {
	return func(c *backendConfig) {
		c.spelling = true
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *backendConfig) {
		c.log = log
	}
}
