//go:build integration

// Package itests runs the HTTP API against a real PostgreSQL started in a container.
package itests

import (
	"context"
	"database/sql"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "crm"
	pgPassword = "crm"
	pgDatabase = "crm_test"
)

// dockerAvailable reports whether a Docker daemon answers.
func dockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}

// startPostgres runs a throwaway PostgreSQL and returns its DSN and a terminate func.
func startPostgres(ctx context.Context) (string, func(), error) {
	req := testcontainers.ContainerRequest{
		Image:        pgImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       pgDatabase,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithDeadline(90 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", func() {}, fmt.Errorf("start postgres container: %w", err)
	}
	terminate := func() {
		_ = c.Terminate(context.Background())
	}

	host, err := c.Host(ctx)
	if err != nil {
		terminate()
		return "", func() {}, fmt.Errorf("container host: %w", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		terminate()
		return "", func() {}, fmt.Errorf("container port: %w", err)
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", pgUser, pgPassword, host, port.Port(), pgDatabase)
	return dsn, terminate, nil
}

// truncateAll empties every application table and restarts identities.
func truncateAll(ctx context.Context, db *sql.DB, tables []string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, "TRUNCATE "+strings.Join(tables, ", ")+" RESTART IDENTITY CASCADE")
	return err
}
