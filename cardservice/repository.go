package cardservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgconn"
	"github.com/jonanatree/cardvault/cardservice/models"
	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound = fmt.Errorf("not found")
	ErrConflict = fmt.Errorf("conflict")
)

// CardFilter narrows ListCards. Zero fields do not filter.
type CardFilter struct {
	OwnerID      string
	Active       *bool
	Network      string
	NumberSuffix string
}

// Repository stores users and cards either in memory or in a SQL database
// through bun. The in-memory backend keeps the same uniqueness guarantees as
// the SQL unique indexes.
type Repository struct {
	Users []*models.User
	Cards []*models.Card

	mu      sync.RWMutex
	numbers map[string]struct{}
	emails  map[string]struct{}
	db      *bun.DB
}

func NewRepository() *Repository {
	return &Repository{
		Users:   make([]*models.User, 0),
		Cards:   make([]*models.Card, 0),
		numbers: make(map[string]struct{}),
		emails:  make(map[string]struct{}),
	}
}

// NewSQLRepository constructs a db-backed repository. The schema must
// already be migrated.
func NewSQLRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.emails[user.Email]; ok {
			return fmt.Errorf("email exists: %w", ErrConflict)
		}
		u := *user
		r.Users = append(r.Users, &u)
		r.emails[user.Email] = struct{}{}
		return nil
	}
	_, err := r.db.NewInsert().Model(user).Exec(ctx)
	if isUniqueViolation(err) {
		return fmt.Errorf("email exists: %w", ErrConflict)
	}
	return err
}

func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, u := range r.Users {
			if u.Email == email {
				cp := *u
				return &cp, nil
			}
		}
		return nil, ErrNotFound
	}
	user := new(models.User)
	err := r.db.NewSelect().Model(user).Where("email = ?", email).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (r *Repository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, u := range r.Users {
			if u.ID == id {
				cp := *u
				return &cp, nil
			}
		}
		return nil, ErrNotFound
	}
	user := new(models.User)
	err := r.db.NewSelect().Model(user).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// ExistsGlobally reports whether any user holds the card number.
func (r *Repository) ExistsGlobally(ctx context.Context, number string) (bool, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		_, ok := r.numbers[number]
		return ok, nil
	}
	return r.db.NewSelect().Model((*models.Card)(nil)).Where("number = ?", number).Exists(ctx)
}

func (r *Repository) ActiveCountForOwner(ctx context.Context, ownerID string) (int, error) {
	active := true
	return r.countCards(ctx, CardFilter{OwnerID: ownerID, Active: &active})
}

func (r *Repository) TotalCountForOwner(ctx context.Context, ownerID string) (int, error) {
	return r.countCards(ctx, CardFilter{OwnerID: ownerID})
}

func (r *Repository) countCards(ctx context.Context, f CardFilter) (int, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		n := 0
		for _, c := range r.Cards {
			if f.match(c) {
				n++
			}
		}
		return n, nil
	}
	return f.apply(r.db.NewSelect().Model((*models.Card)(nil))).Count(ctx)
}

// CreateCard inserts card. A number that is already stored yields ErrConflict.
func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.numbers[card.Number]; ok {
			return fmt.Errorf("card number exists: %w", ErrConflict)
		}
		c := *card
		r.Cards = append(r.Cards, &c)
		r.numbers[card.Number] = struct{}{}
		return nil
	}
	_, err := r.db.NewInsert().Model(card).Exec(ctx)
	if isUniqueViolation(err) {
		return fmt.Errorf("card number exists: %w", ErrConflict)
	}
	return err
}

func (r *Repository) GetCard(ctx context.Context, id string) (*models.Card, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, c := range r.Cards {
			if c.ID == id {
				cp := *c
				return &cp, nil
			}
		}
		return nil, ErrNotFound
	}
	card := new(models.Card)
	if err := r.db.NewSelect().Model(card).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return card, nil
}

// ListCards returns matching cards oldest first.
func (r *Repository) ListCards(ctx context.Context, f CardFilter) ([]*models.Card, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		out := make([]*models.Card, 0)
		for _, c := range r.Cards {
			if f.match(c) {
				cp := *c
				out = append(out, &cp)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return out[i].ID < out[j].ID
		})
		return out, nil
	}
	cards := make([]*models.Card, 0)
	err := f.apply(r.db.NewSelect().Model(&cards)).Order("created_at ASC", "id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// UpdateCard persists limit, balance and active flag of card.
func (r *Repository) UpdateCard(ctx context.Context, card *models.Card) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, c := range r.Cards {
			if c.ID == card.ID {
				c.CreditLimit = card.CreditLimit
				c.CurrentBalance = card.CurrentBalance
				c.Active = card.Active
				c.UpdatedAt = card.UpdatedAt
				return nil
			}
		}
		return ErrNotFound
	}
	res, err := r.db.NewUpdate().Model(card).
		Column("credit_limit", "current_balance", "active", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (r *Repository) DeleteCard(ctx context.Context, id string) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, c := range r.Cards {
			if c.ID == id {
				delete(r.numbers, c.Number)
				r.Cards = append(r.Cards[:i], r.Cards[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	}
	res, err := r.db.NewDelete().Model((*models.Card)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// Ping returns DB readiness.
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (f CardFilter) match(c *models.Card) bool {
	if f.OwnerID != "" && c.OwnerID != f.OwnerID {
		return false
	}
	if f.Active != nil && c.Active != *f.Active {
		return false
	}
	if f.Network != "" && c.Network != f.Network {
		return false
	}
	if f.NumberSuffix != "" && !strings.HasSuffix(c.Number, f.NumberSuffix) {
		return false
	}
	return true
}

func (f CardFilter) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	if f.Network != "" {
		q = q.Where("network = ?", f.Network)
	}
	if f.NumberSuffix != "" {
		q = q.Where("number LIKE ?", "%"+f.NumberSuffix)
	}
	return q
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}
