// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler
// integration tests. Tests are skipped when PostgreSQL or Valkey are
// unavailable.
package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/poer2023/tdp/internal/archive"
	"github.com/poer2023/tdp/internal/cache"
	"github.com/poer2023/tdp/internal/database"
	"github.com/poer2023/tdp/internal/middleware"
	"github.com/poer2023/tdp/internal/models"
	"github.com/poer2023/tdp/internal/reconcile"
	"github.com/poer2023/tdp/internal/session"
	"github.com/poer2023/tdp/internal/store"
	"github.com/poer2023/tdp/internal/transfer"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "tdp")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "tdp")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		for _, pattern := range []string{"session:*", "post:*", "import:*"} {
			keys, _ := client.Keys(ctx, pattern).Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		}
		client.Close()
	})

	return client
}

// testEnv holds all dependencies for handler integration tests.
type testEnv struct {
	DB              *sql.DB
	Valkey          *redis.Client
	Sessions        *session.Store
	PostStore       *store.PostStore
	UserStore       *store.UserStore
	SubscriberStore *store.SubscriberStore
	PostCache       *cache.PostCache
	ImportSessions  *cache.ImportSessions
	Auth            *Auth
	Admin           *Admin
	Public          *Public
	Transfer        *Transfer
}

// newTestEnv creates a complete test environment with all handler
// dependencies except S3, which has no local test double.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	vk := testValkeyClient(t)

	sessions := session.NewStore(vk, false)
	postStore := store.NewPostStore(db)
	userStore := store.NewUserStore(db)
	subscriberStore := store.NewSubscriberStore(db)
	postCache := cache.NewPostCache(vk, 1*time.Minute)
	importSessions := cache.NewImportSessions(vk, 1*time.Minute)

	engine := reconcile.New(postStore, postStore)
	exporter := transfer.NewExporter(postStore)
	importer := transfer.NewImporter(engine, 0)

	return &testEnv{
		DB:              db,
		Valkey:          vk,
		Sessions:        sessions,
		PostStore:       postStore,
		UserStore:       userStore,
		SubscriberStore: subscriberStore,
		PostCache:       postCache,
		ImportSessions:  importSessions,
		Auth:            NewAuth(sessions, userStore),
		Admin:           NewAdmin(postStore, subscriberStore, postCache),
		Public:          NewPublic(postStore, subscriberStore, postCache),
		Transfer:        NewTransfer(exporter, importer, importSessions, postCache),
	}
}

// ctxWithSession adds session data to a context using the middleware key.
func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, middleware.SessionKey, data)
}

// testSession creates a session.Data for testing.
func testSession(userID uuid.UUID, email, role string, twoFADone bool) *session.Data {
	return &session.Data{
		UserID:      userID,
		Email:       email,
		DisplayName: "Test User",
		Role:        role,
		TwoFADone:   twoFADone,
	}
}

// liveSession creates a real session in Valkey and returns both the
// data and the cookie, for handlers that update the session mid-request.
func liveSession(t *testing.T, env *testEnv, data *session.Data) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	if _, err := env.Sessions.Create(context.Background(), rec, data); err != nil {
		t.Fatalf("session create: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// testUser creates (or reuses) a user for handler tests.
func testUser(t *testing.T, env *testEnv, email, password string) *models.User {
	t.Helper()

	ctx := context.Background()
	existing, err := env.UserStore.FindByEmail(ctx, email)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if existing != nil {
		return existing
	}
	user, err := env.UserStore.Create(ctx, email, password, "Test User", models.RoleAdmin)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	t.Cleanup(func() {
		env.DB.Exec("DELETE FROM users WHERE email = $1", email)
	})
	return user
}

// buildTestArchive packs documents into an import archive.
func buildTestArchive(t *testing.T, docs map[string]string) []byte {
	t.Helper()

	m := &archive.Manifest{ExportedAt: time.Now().UTC(), Version: "1"}
	var entries []archive.Document
	for p, content := range docs {
		entries = append(entries, archive.Document{Path: p, Content: content})
	}
	data, err := archive.Pack(m, entries)
	if err != nil {
		t.Fatalf("pack archive: %v", err)
	}
	return data
}

// cleanPostGroups removes test posts (and their aliases, via cascade)
// by group id.
func cleanPostGroups(t *testing.T, db *sql.DB, groups ...string) {
	t.Helper()
	for _, g := range groups {
		db.Exec("DELETE FROM posts WHERE group_id = $1", g)
	}
}

// cleanSubscribers removes test subscribers by email.
func cleanSubscribers(t *testing.T, db *sql.DB, emails ...string) {
	t.Helper()
	for _, e := range emails {
		db.Exec("DELETE FROM subscribers WHERE email = $1", e)
	}
}
