package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Analyst is a dashboard operator allowed to trigger data reloads.
type Analyst struct {
	bun.BaseModel `bun:"table:app.analysts,alias:an"`
	ID            uuid.UUID  `bun:",pk,nullzero,type:uuid,default:uuid_generate_v4()" json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	TokenVersion  int        `bun:"token_version" json:"token_version"`
	Roles         []string   `json:"roles" bun:"type:text[]"`
	Provider      string     `json:"provider"`
	Name          string     `json:"name"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLoginAt   *time.Time `json:"last_login_at"`
}

type AnalystInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Provider string   `json:"provider"`
	Roles    []string `json:"roles"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"access_expires_at"`
	Analyst     *AnalystInfo `json:"analyst"`
}
