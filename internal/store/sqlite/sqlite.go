package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"postboard/internal/store"
	"postboard/internal/store/sqlite/migrations"
)

type DB struct {
	*sql.DB

	users    *UserRepository
	posts    *PostRepository
	comments *CommentRepository
}

var _ store.Store = (*DB)(nil)

func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: db}
	if err := d.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	d.users = &UserRepository{db: d}
	d.posts = &PostRepository{db: d}
	d.comments = &CommentRepository{db: d}

	return d, nil
}

func (db *DB) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db.DB, ".")
}

func (db *DB) Users() store.UserRepository       { return db.users }
func (db *DB) Posts() store.PostRepository       { return db.posts }
func (db *DB) Comments() store.CommentRepository { return db.comments }

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}
