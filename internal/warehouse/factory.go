package warehouse

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/snowflakedb/gosnowflake"

	"snowpilot/pkg/errors"
)

// Supported drivers. Snowflake is the primary target; postgres and mysql
// cover warehouses reachable over their wire protocols.
const (
	DriverSnowflake = "snowflake"
	DriverPostgres  = "postgres"
	DriverMySQL     = "mysql"
)

// BuildDSN returns the database/sql driver name and DSN for the configured
// driver.
func BuildDSN(cfg Config) (string, string, error) {
	switch cfg.Driver {
	case "", DriverSnowflake:
		dsn := fmt.Sprintf("%s:%s@%s/%s/%s?warehouse=%s&role=%s",
			cfg.Username,
			cfg.Password,
			cfg.Account,
			cfg.Database,
			cfg.Schema,
			cfg.Warehouse,
			cfg.Role,
		)
		return DriverSnowflake, dsn, nil

	case DriverPostgres:
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=require",
			cfg.Host, port, cfg.Username, cfg.Password, cfg.Database)
		return DriverPostgres, dsn, nil

	case DriverMySQL:
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			cfg.Username, cfg.Password, cfg.Host, port, cfg.Database)
		return DriverMySQL, dsn, nil

	default:
		return "", "", errors.New(errors.ErrCodeUnsupportedDriver, "Unsupported driver: "+cfg.Driver).
			WithContext("driver", cfg.Driver).
			WithSuggestions("Use one of: snowflake, postgres, mysql")
	}
}
