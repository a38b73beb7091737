// Package postgres implements the result store on PostgreSQL. The
// jobs table schema lives in the embedded goose migrations applied at
// server startup.
package postgres
