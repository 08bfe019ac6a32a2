// Package migrations provides SQL migration generation for the push status
// tables consumed by the durable status accessor. It generates database schema
// migrations for PostgreSQL, MySQL/MariaDB, and SQLite databases.
package migrations
