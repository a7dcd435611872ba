package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/db"
)

const (
	DriverPostgres  = "postgres"
	DriverMongo     = "mongo"
	DriverFirestore = "firestore"
	DriverMemory    = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Driver             string
	DatabaseURL        string
	DBMaxConns         int32
	DBMinConns         int32
	MongoURI           string
	MongoDatabase      string
	FirestoreProjectID string
	Timeout            time.Duration
}

// Opened is the result of Open. Pool is only set for the postgres driver so
// callers can expose pool health and run migrations.
type Opened struct {
	Store Store
	Pool  *pgxpool.Pool
}

// Open connects the configured backend and wraps it with the per-call timeout.
func Open(ctx context.Context, opts Options) (*Opened, error) {
	var (
		s    Store
		pool *pgxpool.Pool
	)
	switch opts.Driver {
	case DriverPostgres, "":
		p, err := db.NewPool(ctx, opts.DatabaseURL, opts.DBMaxConns, opts.DBMinConns)
		if err != nil {
			return nil, err
		}
		pool = p
		s = NewPostgres(p)
	case DriverMongo:
		m, err := NewMongo(ctx, opts.MongoURI, opts.MongoDatabase)
		if err != nil {
			return nil, err
		}
		s = m
	case DriverFirestore:
		f, err := NewFirestore(ctx, opts.FirestoreProjectID)
		if err != nil {
			return nil, err
		}
		s = f
	case DriverMemory:
		s = NewMemory()
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	return &Opened{Store: WithTimeout(s, opts.Timeout), Pool: pool}, nil
}
