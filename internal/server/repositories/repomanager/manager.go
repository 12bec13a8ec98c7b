package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/drivelink/internal/dbx"
	"github.com/dmitrijs2005/drivelink/internal/server/repositories/connections"
	"github.com/dmitrijs2005/drivelink/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so a service can hand
// it either the pool or an open transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Connections(db dbx.DBTX) connections.Repository
}
