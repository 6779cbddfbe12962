// Package postgres implements store.Store on PostgreSQL using pgx/v5
// with raw SQL and embedded migrations.
//
// Claims rely on the conditional update
// UPDATE ... WHERE id = $n AND state = $m, so any number of workers in
// any number of processes can share one database.
package postgres
