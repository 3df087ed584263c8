package atlas

// Application-wide defaults shared across packages.
const (
	DefaultAppName      = "taskatlas"
	DefaultConfigPath   = "/etc/taskatlas"
	DefaultDatabaseDir  = ".taskatlas"
	DefaultDatabaseDSN  = "file:.taskatlas/atlas.db"
	DefaultDatabaseType = "libsql"
)
