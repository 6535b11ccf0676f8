// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriberStatus is the confirmation state of a newsletter subscriber.
type SubscriberStatus string

const (
	SubscriberPending   SubscriberStatus = "pending"
	SubscriberConfirmed SubscriberStatus = "confirmed"
)

// Subscriber is a newsletter signup. The preferred locale decides
// which language edition of a post announcement they receive.
type Subscriber struct {
	ID        uuid.UUID        `json:"id"`
	Email     string           `json:"email"`
	Locale    Locale           `json:"locale"`
	Status    SubscriberStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
