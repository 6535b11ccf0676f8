package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Seed populates the database with initial development data: a default
// admin user plus one bilingual sample post pair so the export and
// public endpoints have something to serve straight away. The admin
// will be prompted to set up 2FA on first login (totp_enabled = false).
func Seed(db *sql.DB) error {
	// Check if any users exist already.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	// Hash the default admin password.
	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO users (email, password_hash, display_name, role, totp_enabled)
		VALUES ($1, $2, $3, $4, $5)
	`, "admin@tdp.local", string(hash), "Admin", "admin", false)
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	// One article in both locales, sharing a group id, so the list,
	// detail, and export paths all have data in a fresh dev setup.
	_, err = db.Exec(`
		INSERT INTO posts (group_id, locale, title, slug, content, excerpt, tags, status, published_at)
		VALUES
			('seed-welcome', 'en', 'Hello World', 'hello-world',
			 'Welcome to your new blog.', 'A first post.', 'meta', 'published', now()),
			('seed-welcome', 'zh', '你好世界', 'ni-hao-shi-jie',
			 '欢迎来到你的新博客。', '第一篇文章。', 'meta', 'published', now())
	`)
	if err != nil {
		return fmt.Errorf("seed insert posts: %w", err)
	}

	slog.Info("database seeded with default admin user and sample posts",
		"email", "admin@tdp.local",
		"password", "admin",
	)

	return nil
}
