package store

// Config selects and tunes the storage backend
type Config struct {
	SQLite SQLiteConfig
}

// SQLiteConfig configures the embedded sqlite backend
type SQLiteConfig struct {
	// Enabled turns the backend on; when false Store.SQL stays nil
	Enabled bool

	// Path is the database file path; ":memory:" opens an in-memory database
	Path string

	// BusyTimeoutMs bounds lock waits before SQLITE_BUSY surfaces
	BusyTimeoutMs int

	// MaxConns caps the pool; sqlite writers serialize anyway so keep it small
	MaxConns int

	// LogSQL emits a debug line per statement when true
	LogSQL bool
}

func (c SQLiteConfig) withDefaults() SQLiteConfig {
	if c.BusyTimeoutMs <= 0 {
		c.BusyTimeoutMs = 5000
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 4
	}
	return c
}
