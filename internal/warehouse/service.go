package warehouse

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"snowpilot/internal/logger"
	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// Service provides database access to the target warehouse. It is both the
// telemetry read path and the execution target for vetted statements.
type Service struct {
	db             *sql.DB
	config         Config
	connected      bool
	log            logger.Logger
	circuitBreaker *errors.CircuitBreaker
}

// Config holds warehouse connection configuration.
type Config struct {
	Driver    string
	Account   string
	Username  string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
	Host      string
	Port      int
	Timeout   time.Duration
}

// ConfigFromModel converts the YAML config block, parsing the timeout.
func ConfigFromModel(w models.Warehouse) (Config, error) {
	cfg := Config{
		Driver:    w.Driver,
		Account:   w.Account,
		Username:  w.Username,
		Password:  w.Password,
		Database:  w.Database,
		Schema:    w.Schema,
		Warehouse: w.Warehouse,
		Role:      w.Role,
		Host:      w.Host,
		Port:      w.Port,
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverSnowflake
	}
	if w.Timeout != "" {
		d, err := time.ParseDuration(w.Timeout)
		if err != nil {
			return Config{}, errors.ConfigError("Invalid warehouse timeout", "warehouse.timeout").
				WithContext("value", w.Timeout)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

// NewService creates a new warehouse service.
func NewService(config Config, log logger.Logger) *Service {
	return &Service{
		config:         config,
		log:            log,
		circuitBreaker: errors.NewCircuitBreaker("warehouse", 5, 30*time.Second),
	}
}

// Connect establishes the database connection, with retry and a circuit
// breaker around the attempt.
func (s *Service) Connect() error {
	if s.connected {
		return nil
	}

	return s.circuitBreaker.Execute(context.Background(), func() error {
		return errors.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
			driver, dsn, err := BuildDSN(s.config)
			if err != nil {
				return err
			}

			db, err := sql.Open(driver, dsn)
			if err != nil {
				return errors.ConnectionError("Failed to open warehouse connection", err).
					WithContext("driver", driver)
			}

			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(10 * time.Minute)

			connCtx, cancel := s.getContext()
			defer cancel()

			if err := db.PingContext(connCtx); err != nil {
				db.Close()

				if strings.Contains(err.Error(), "authentication") {
					return errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
						WithContext("user", s.config.Username).
						WithSuggestions(
							"Verify your username and password",
							"Check if your account is locked",
							"Ensure MFA is properly configured if required",
						)
				}

				return errors.ConnectionError("Failed to connect to warehouse", err).
					WithContext("driver", driver).
					AsRecoverable()
			}

			s.db = db
			s.connected = true
			s.log.Info("Connected to warehouse",
				logger.String("driver", driver),
				logger.String("database", s.config.Database))
			return nil
		})
	})
}

// Close closes the database connection.
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConnectionFailed, "Failed to close connection")
	}
	s.connected = false
	return nil
}

// Execute runs a single statement against the warehouse. This is the
// execution target for approved candidates, so it refuses empty input and
// reports failures with the statement attached.
func (s *Service) Execute(ctx context.Context, statement string) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to warehouse").
			WithSuggestions("Call Connect() before executing statements")
	}

	statement = strings.TrimSpace(statement)
	if statement == "" {
		return errors.New(errors.ErrCodeInvalidInput, "Empty statement")
	}

	execCtx, cancel := s.childContext(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(execCtx, statement); err != nil {
		sqlErr := errors.SQLError("Statement execution failed", statement, err)

		errStr := err.Error()
		if strings.Contains(errStr, "does not exist") || strings.Contains(errStr, "not found") {
			sqlErr.Code = errors.ErrCodeSQLObjectNotFound
			sqlErr.WithSuggestions(
				"Verify the object exists in the target database/schema",
				"Check for typos in object names",
				"Ensure the role has the required permissions",
			)
		}
		return sqlErr
	}
	return nil
}

// Query runs a read query with the service timeout applied.
func (s *Service) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to warehouse")
	}

	queryCtx, cancel := s.childContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(queryCtx, query, args...)
	if err != nil {
		return nil, errors.SQLError("Query failed", query, err)
	}
	return rows, nil
}

// Preview compiles a query on the warehouse without running it. Used by
// the pipeline intake to reject transformations that reference missing
// objects before they enter the queue.
func (s *Service) Preview(ctx context.Context, query string) error {
	rows, err := s.Query(ctx, "EXPLAIN "+query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

// Ping tests the connection.
func (s *Service) Ping(ctx context.Context) error {
	if !s.connected {
		if err := s.Connect(); err != nil {
			return err
		}
	}
	pingCtx, cancel := s.childContext(ctx)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// DB returns the underlying connection, for tests and telemetry readers.
func (s *Service) DB() *sql.DB {
	return s.db
}

// SetDB injects an existing connection, used by tests with sqlmock.
func (s *Service) SetDB(db *sql.DB) {
	s.db = db
	s.connected = true
}

func (s *Service) getContext() (context.Context, context.CancelFunc) {
	return s.childContext(context.Background())
}

func (s *Service) childContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}

// ValidateConfig validates the warehouse configuration for the selected
// driver.
func ValidateConfig(config Config) error {
	if config.Username == "" {
		return errors.ConfigError("username is required", "warehouse.username")
	}
	if config.Password == "" {
		return errors.ConfigError("password is required", "warehouse.password")
	}

	switch config.Driver {
	case "", DriverSnowflake:
		if config.Account == "" {
			return errors.ConfigError("account is required", "warehouse.account")
		}
		if config.Warehouse == "" {
			return errors.ConfigError("warehouse is required", "warehouse.warehouse")
		}
		if config.Role == "" {
			return errors.ConfigError("role is required", "warehouse.role")
		}
	case DriverPostgres, DriverMySQL:
		if config.Host == "" {
			return errors.ConfigError("host is required", "warehouse.host")
		}
		if config.Database == "" {
			return errors.ConfigError("database is required", "warehouse.database")
		}
	default:
		return errors.New(errors.ErrCodeUnsupportedDriver, "Unsupported driver: "+config.Driver).
			WithSuggestions("Use one of: snowflake, postgres, mysql")
	}
	return nil
}
