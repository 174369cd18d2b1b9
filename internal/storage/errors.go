package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

var (
	ErrNotFound    = errors.New("article not found")
	ErrEmptyFilter = errors.New("refusing bulk write without filter")
)

type ErrorKind int

const (
	Unexpected ErrorKind = iota
	DuplicateKey
	ConnectionFailure
	ValidationFailure
)

func (k ErrorKind) String() string {
	switch k {
	case DuplicateKey:
		return "duplicate_key"
	case ConnectionFailure:
		return "connection_failure"
	case ValidationFailure:
		return "validation_failure"
	default:
		return "unexpected"
	}
}

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

const pgUniqueViolation = "23505"

func classifyGorm(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &Error{Kind: DuplicateKey, Op: op, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &Error{Kind: DuplicateKey, Op: op, Err: err}
	}
	if isConnectionError(err) {
		return &Error{Kind: ConnectionFailure, Op: op, Err: err}
	}
	return &Error{Kind: Unexpected, Op: op, Err: err}
}

func classifyMongo(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return &Error{Kind: DuplicateKey, Op: op, Err: err}
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, mongo.ErrClientDisconnected):
		return &Error{Kind: ConnectionFailure, Op: op, Err: err}
	case isConnectionError(err):
		return &Error{Kind: ConnectionFailure, Op: op, Err: err}
	}
	return &Error{Kind: Unexpected, Op: op, Err: err}
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// database/sql 未导出该错误
	return strings.Contains(err.Error(), "database is closed")
}
