// Package db provides SurrealDB database connectivity with auto-reconnect support.
package db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/feelfree-go/internal/metrics"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// WebSocket upgrade needs HTTP/1.1; an HTTP/2 ALPN result breaks wss.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Auth levels for Config.AuthLevel. Empty means root.
const (
	AuthLevelRoot     = "root"
	AuthLevelDatabase = "database"
)

const dialTimeout = 5 * time.Second

// tables lists every table the store writes, dependents first.
var tables = []string{"conversation", "profile", "auth_session", "user"}

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string
}

func (c Config) validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("surrealdb url is empty"))
	}
	if c.Namespace == "" || c.Database == "" {
		errs = append(errs, errors.New("surrealdb namespace and database are required"))
	}
	switch c.AuthLevel {
	case "", AuthLevelRoot, AuthLevelDatabase:
	default:
		errs = append(errs, fmt.Errorf("unknown surrealdb auth level %q", c.AuthLevel))
	}
	return errors.Join(errs...)
}

// credentials scopes the sign-in to the namespace and database for
// database-level users.
func (c Config) credentials() surrealdb.Auth {
	a := surrealdb.Auth{Username: c.Username, Password: c.Password}
	if c.AuthLevel == AuthLevelDatabase {
		a.Namespace = c.Namespace
		a.Database = c.Database
	}
	return a
}

// rpcBaseURL strips the /rpc suffix; gorillaws appends it itself.
func rpcBaseURL(raw string) string {
	return strings.TrimSuffix(strings.TrimRight(raw, "/"), "/rpc")
}

// Client is the SurrealDB-backed store for users, auth sessions, profiles
// and conversations. The connection reconnects on its own.
type Client struct {
	conn    *rews.Connection[*gorillaws.Connection]
	db      *surrealdb.DB
	cfg     Config
	metrics *metrics.Collector
	logger  logger.Logger
}

// NewClient connects, signs in and selects the namespace and database.
// mc and log may be nil.
func NewClient(ctx context.Context, cfg Config, mc *metrics.Collector, log *slog.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("surrealdb config: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	sdkLogger := logger.New(log.With("component", "surrealdb").Handler())
	codec := surrealcbor.New()

	conn := rews.New(
		func(context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     rpcBaseURL(cfg.URL),
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		dialTimeout,
		codec,
		sdkLogger,
	)
	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	sdkLogger.Info("connecting to SurrealDB", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.URL, err)
	}

	c := &Client{conn: conn, cfg: cfg, metrics: mc, logger: sdkLogger}
	if err := c.open(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	sdkLogger.Info("SurrealDB ready", "namespace", cfg.Namespace, "database", cfg.Database)
	return c, nil
}

func (c *Client) open(ctx context.Context) error {
	db, err := surrealdb.FromConnection(ctx, c.conn)
	if err != nil {
		return fmt.Errorf("from connection: %w", err)
	}
	level := c.cfg.AuthLevel
	if level == "" {
		level = AuthLevelRoot
	}
	if _, err := db.SignIn(ctx, c.cfg.credentials()); err != nil {
		return fmt.Errorf("sign in as %s (%s): %w", c.cfg.Username, level, err)
	}
	if err := db.Use(ctx, c.cfg.Namespace, c.cfg.Database); err != nil {
		return fmt.Errorf("use %s/%s: %w", c.cfg.Namespace, c.cfg.Database, err)
	}
	c.db = db
	return nil
}

// Close closes the SurrealDB connection.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info("closing SurrealDB connection")
	return c.conn.Close(ctx)
}

// InitSchema applies the table and index definitions. It is idempotent.
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, SchemaSQL, nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	c.logger.Info("schema ready", "tables", len(tables))
	return nil
}

// WipeData deletes every record and keeps the schema. Testing only.
func (c *Client) WipeData(ctx context.Context) error {
	for _, table := range tables {
		if _, err := surrealdb.Query[any](ctx, c.db, "DELETE type::table($table)", map[string]any{"table": table}); err != nil {
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}
	c.logger.Warn("all data wiped", "tables", strings.Join(tables, ","))
	return nil
}
