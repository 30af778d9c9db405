package source

import (
	"context"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/config"
	"github.com/stanstork/noticeboard/internal/notification"
	"github.com/stanstork/noticeboard/internal/source/feed"
	"github.com/stanstork/noticeboard/internal/source/mongosource"
	"github.com/stanstork/noticeboard/internal/source/resource"
	"github.com/stanstork/noticeboard/internal/source/rest"
	"github.com/stanstork/noticeboard/internal/source/sqlsource"
	"github.com/stanstork/noticeboard/internal/utils"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	_ "modernc.org/sqlite"
)

const (
	TypeFeed     = "feed"
	TypeREST     = "rest"
	TypeResource = "resource"
	TypeSQL      = "sql"
	TypeMongo    = "mongo"

	restRetryCount = 2
	restRetryWait  = 250 * time.Millisecond
	connectTimeout = 10 * time.Second
)

// Set holds the providers built from configuration along with the
// connections they own.
type Set struct {
	Providers []notification.Provider
	closers   []func() error
}

// Close releases every connection opened by Build.
func (s *Set) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// Build constructs one provider per source configuration, in order.
func Build(ctx context.Context, cfgs []config.SourceConfig, logger zerolog.Logger) (*Set, error) {
	set := &Set{}
	for _, cfg := range cfgs {
		p, err := set.build(ctx, cfg, logger)
		if err != nil {
			_ = set.Close()
			return nil, errors.Wrapf(err, "error building source %q", cfg.Name)
		}
		set.Providers = append(set.Providers, p)
		logger.Info().Str("source", cfg.Name).Str("type", cfg.Type).Msg("source configured")
	}
	return set, nil
}

func (s *Set) build(ctx context.Context, cfg config.SourceConfig, logger zerolog.Logger) (notification.Provider, error) {
	cfg, err := resolveSecrets(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case TypeFeed:
		return feed.New(feed.Config{Name: cfg.Name, URLs: cfg.URLs, Timeout: cfg.Timeout}, logger)

	case TypeREST:
		return rest.New(rest.Config{
			Name:       cfg.Name,
			URLs:       cfg.URLs,
			Username:   cfg.Username,
			Password:   cfg.Password,
			Timeout:    cfg.Timeout,
			Params:     cfg.Params,
			RetryCount: restRetryCount,
			RetryWait:  restRetryWait,
		}, logger)

	case TypeResource:
		if cfg.Directory == "" {
			return nil, errors.New("directory is required")
		}
		return resource.New(cfg.Name, os.DirFS(cfg.Directory), cfg.Files, logger)

	case TypeSQL:
		db, err := s.openSQL(cfg)
		if err != nil {
			return nil, err
		}
		return sqlsource.New(cfg.Name, db, cfg.Query, cfg.Category, logger)

	case TypeMongo:
		coll, err := s.openMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return mongosource.New(cfg.Name, coll, cfg.Limit, cfg.Category, logger)
	}
	return nil, errors.Errorf("unknown source type %q", cfg.Type)
}

func (s *Set) openSQL(cfg config.SourceConfig) (*sqlx.DB, error) {
	driver := cfg.Driver
	switch driver {
	case "", "postgres":
		driver = "postgres"
	case "sqlite":
	default:
		return nil, errors.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("dsn is required")
	}
	db, err := sqlx.Open(driver, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "error opening database")
	}
	s.closers = append(s.closers, db.Close)
	return db, nil
}

func (s *Set) openMongo(ctx context.Context, cfg config.SourceConfig) (*mongo.Collection, error) {
	if cfg.URI == "" || cfg.Database == "" || cfg.Collection == "" {
		return nil, errors.New("uri, database and collection are required")
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to mongo")
	}
	s.closers = append(s.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		return client.Disconnect(ctx)
	})
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, errors.Wrap(err, "error pinging mongo")
	}
	return client.Database(cfg.Database).Collection(cfg.Collection), nil
}

// resolveSecrets decrypts the credential fields that may be stored encrypted.
func resolveSecrets(cfg config.SourceConfig) (config.SourceConfig, error) {
	for _, field := range []*string{&cfg.Password, &cfg.DSN, &cfg.URI} {
		plain, err := utils.DecryptSecret(*field)
		if err != nil {
			return cfg, errors.Wrap(err, "error decrypting source credentials")
		}
		*field = plain
	}
	return cfg, nil
}
