// Package main provides the entry point for the mock bank server the suite
// runs against. By default everything lives in process; a Redis URL moves the
// idempotency replay cache out of process, and a MySQL DSN moves the ledger.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/rohan-js/automated-api-testing-framework/idempotency"
	idemredis "github.com/rohan-js/automated-api-testing-framework/idempotency/redis"
	"github.com/rohan-js/automated-api-testing-framework/mockbank"
	"github.com/rohan-js/automated-api-testing-framework/store"
	storemysql "github.com/rohan-js/automated-api-testing-framework/store/mysql"
)

func main() {
	addr := flag.String("addr", ":5000", "listen address")
	redisURL := flag.String("redis", "", "Redis URL for the idempotency cache (default in-memory)")
	mysqlDSN := flag.String("mysql", "", "MySQL DSN for the ledger (default in-memory)")
	flag.Parse()

	opts := []mockbank.ServerOption{
		mockbank.WithAddr(*addr),
		mockbank.WithBugFlags(mockbank.BugFlags{
			AllowNegativeBalance: envFlag("BANK_BUG_ALLOW_NEGATIVE"),
			DuplicateOnRetry:     envFlag("BANK_BUG_DUPLICATE_ON_RETRY"),
		}),
	}

	if *mysqlDSN != "" {
		ledger, err := openMySQLLedger(*mysqlDSN)
		if err != nil {
			log.Fatalf("mysql ledger: %v", err)
		}
		opts = append(opts, mockbank.WithLedger(ledger))
	}
	if *redisURL != "" {
		cache, err := openRedisCache(*redisURL)
		if err != nil {
			log.Fatalf("redis cache: %v", err)
		}
		opts = append(opts, mockbank.WithCache(cache))
	}

	server := mockbank.NewServer(opts...)

	go func() {
		fmt.Printf("mockbank listening on %s\n", *addr)
		if err := server.Start(); err != nil {
			log.Printf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// envFlag reads a boolean environment flag the way the bank's bug switches
// expect: 1/true/yes/on enable it.
func envFlag(name string) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func openMySQLLedger(dsn string) (store.Ledger, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	for _, stmt := range strings.Split(storemysql.Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
	}
	return storemysql.New(db), nil
}

func openRedisCache(url string) (idempotency.Cache, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	client := redis.NewClient(options)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return idemredis.New(client), nil
}
