// Package pgstore provides the PostgreSQL persistence layer for the
// notification engine: notification, delivery record and preference storage,
// plus a database-backed task repository for the background job queue.
//
// Schema migrations are embedded and applied with goose; connections use a
// pgx pool with startup retry.
package pgstore
