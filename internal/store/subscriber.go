// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/poer2023/tdp/internal/models"
)

// SubscriberStore handles newsletter subscriber database operations.
type SubscriberStore struct {
	db *sql.DB
}

// NewSubscriberStore creates a new SubscriberStore with the given database connection.
func NewSubscriberStore(db *sql.DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

const subscriberColumns = `id, email, locale, status, created_at, updated_at`

func scanSubscriber(row interface{ Scan(...any) error }) (*models.Subscriber, error) {
	sub := &models.Subscriber{}
	err := row.Scan(&sub.ID, &sub.Email, &sub.Locale, &sub.Status, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Create inserts a pending subscription. Signing up twice with the
// same address is not an error; the existing row is returned instead.
func (s *SubscriberStore) Create(ctx context.Context, email string, locale models.Locale) (*models.Subscriber, error) {
	sub, err := scanSubscriber(s.db.QueryRowContext(ctx, `
		INSERT INTO subscribers (email, locale)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET locale = EXCLUDED.locale, updated_at = NOW()
		RETURNING `+subscriberColumns,
		email, locale,
	))
	if err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	return sub, nil
}

// FindByEmail retrieves a subscriber by address. Returns nil if not found.
func (s *SubscriberStore) FindByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	sub, err := scanSubscriber(s.db.QueryRowContext(ctx, `
		SELECT `+subscriberColumns+` FROM subscribers WHERE email = $1
	`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find subscriber by email: %w", err)
	}
	return sub, nil
}

// Confirm flips a subscriber to confirmed status.
func (s *SubscriberStore) Confirm(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE subscribers SET status = 'confirmed', updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("confirm subscriber: %w", err)
	}
	return nil
}

// List returns all subscribers, newest first.
func (s *SubscriberStore) List(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriberColumns+` FROM subscribers ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var items []models.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		items = append(items, *sub)
	}
	return items, rows.Err()
}

// Delete removes a subscriber by ID.
func (s *SubscriberStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	return nil
}
