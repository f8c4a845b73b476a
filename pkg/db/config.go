package db

// Config carries the connection settings mapped from the application's
// DATABASE_* environment. Type selects the gorm dialect (postgres in
// deployments, sqlite for local runs); the durations are in seconds.
type Config struct {
	Type            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}
