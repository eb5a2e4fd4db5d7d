package repomanager

import (
	"context"
	"database/sql"

	"github.com/picvault/picvault/internal/dbx"
	"github.com/picvault/picvault/internal/server/repositories/images"
	"github.com/picvault/picvault/internal/server/repositories/refreshtokens"
	"github.com/picvault/picvault/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so a service can use
// the same repository code against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Images(db dbx.DBTX) images.Repository
}
