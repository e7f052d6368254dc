package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Card is a stored credit card. Number is never serialized; responses go
// through CardView.
type Card struct {
	bun.BaseModel `bun:"table:cards"`

	ID             string          `bun:"id,pk" json:"id"`
	OwnerID        string          `bun:"owner_id,notnull" json:"ownerId"`
	Number         string          `bun:"number,notnull,unique" json:"-"`
	Network        string          `bun:"network,notnull" json:"type"`
	ExpirationDate time.Time       `bun:"expiration_date,notnull" json:"expirationDate"`
	CreditLimit    decimal.Decimal `bun:"credit_limit,notnull" json:"creditLimit"`
	CurrentBalance decimal.Decimal `bun:"current_balance,notnull" json:"currentBalance"`
	Active         bool            `bun:"active,notnull" json:"isActive"`
	CreatedAt      time.Time       `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull" json:"updatedAt"`
}

type CreateCard struct {
	CardNumber     string          `json:"cardNumber"`
	ExpirationDate string          `json:"expirationDate"`
	CreditLimit    decimal.Decimal `json:"creditLimit"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	Type           string          `json:"type"`
}

type UpdateCard struct {
	CreditLimit    decimal.Decimal `json:"creditLimit"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
}

// CardView is the outward shape of a card: only the last four digits of the
// number are exposed.
type CardView struct {
	ID                string          `json:"id"`
	CardNumberPartial string          `json:"cardNumberPartial"`
	ExpirationDate    time.Time       `json:"expirationDate"`
	CardFace          string          `json:"cardFace"`
	CreditLimit       decimal.Decimal `json:"creditLimit"`
	CurrentBalance    decimal.Decimal `json:"currentBalance"`
	IsActive          bool            `json:"isActive"`
	Type              string          `json:"type"`
}

type GeneratedNumber struct {
	CardNumber string `json:"cardNumber"`
	CardType   string `json:"cardType"`
}
