package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/accountflags"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/addresses"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or a
// transaction, so services can compose several writes under dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Addresses(db dbx.DBTX) addresses.Repository
	AccountFlags(db dbx.DBTX) accountflags.Repository
}
