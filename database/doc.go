// Package database inspects PostgreSQL schemas and data through pgx.
//
// Every inspection function takes a Querier, which *pgxpool.Pool, pgx.Tx and
// pgxmock pools all satisfy, so the same code runs against a pool, inside a
// transaction, or in unit tests without a server.
//
// ManagedConnection opens a pool with retries and exponential backoff,
// verifies it with a health check query, and closes it when done:
//
//	err := database.WithConnection(ctx, database.PoolFactory(dsn), database.ConnectOptions{},
//	    func(ctx context.Context, pool database.Pool) error {
//	        deps, err := database.ForeignKeyDependencies(ctx, pool, "public")
//	        if err != nil {
//	            return err
//	        }
//	        fmt.Println(deps.OrderedTables)
//	        return nil
//	    })
//
// Table and column names are always quoted with pgx.Identifier before they
// are interpolated into SQL.
package database
