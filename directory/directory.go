// Package directory maps well known mail domains to preconfigured
// submission routes backed by a relational store. A directory hit lets
// verification skip DNS entirely and hands the delivery probe a real
// server, port and sending account instead of guessed defaults.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/optimode/mailprobe/types"
)

// viewName is the read view Lookup queries, created by Migrate.
const viewName = "connection_routes"

// Source yields preconfigured delivery routes for a domain. An empty
// result with a nil error means the domain is not in the directory.
type Source interface {
	Lookup(ctx context.Context, domain string) ([]types.Route, error)
}

// StoreOptions configures optional Store behavior.
type StoreOptions struct {
	// Decrypter is applied to stored usernames and secrets. Leave nil
	// when credentials are stored in the clear.
	Decrypter Decrypter

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Store is a Source reading from the schema created by Migrate.
type Store struct {
	db     *gorm.DB
	dec    Decrypter
	logger *zap.Logger
}

// NewStore returns a Store over db, which must already hold the
// directory schema.
func NewStore(db *gorm.DB, opts ...StoreOptions) (*Store, error) {
	if db == nil {
		return nil, errors.New("directory: nil database handle")
	}
	var opt StoreOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	return &Store{db: db, dec: opt.Decrypter, logger: opt.Logger}, nil
}

// routeRow mirrors one row of the connection_routes view.
type routeRow struct {
	Domain   string
	Server   string
	Username string
	Secret   string
	UseTLS   bool
	Port     int
}

// Lookup returns the configured routes for domain ordered by server
// host. Unknown domains yield an empty result and no error. Stored
// credentials are decrypted before they are returned, and a decrypt
// failure aborts the whole lookup.
func (s *Store) Lookup(ctx context.Context, domain string) ([]types.Route, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, nil
	}

	var rows []routeRow
	err := s.db.WithContext(ctx).
		Table(viewName).
		Where("domain = ?", domain).
		Order("server").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("directory: lookup %q: %w", domain, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	routes := make([]types.Route, 0, len(rows))
	for _, row := range rows {
		username, err := s.reveal(row.Username)
		if err != nil {
			return nil, err
		}
		secret, err := s.reveal(row.Secret)
		if err != nil {
			return nil, err
		}
		routes = append(routes, types.Route{
			Domain:    row.Domain,
			Exchanger: row.Server,
			Username:  username,
			Secret:    secret,
			UseTLS:    row.UseTLS,
			Port:      row.Port,
		})
	}
	s.logger.Debug("directory lookup",
		zap.String("domain", domain),
		zap.Int("routes", len(routes)))
	return routes, nil
}

func (s *Store) reveal(stored string) (string, error) {
	if stored == "" || s.dec == nil {
		return stored, nil
	}
	return s.dec.Decrypt(stored)
}
