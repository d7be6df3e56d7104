package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy represents the 'policies' table. Rows are owned by the import
// pipeline; the engine reads them and only ever writes the cluster column.
type Policy struct {
	ID             int64           `db:"id" json:"id"`
	Number         string          `db:"number" json:"number"`
	ClientID       int64           `db:"client_id" json:"client_id"`
	PremiumUF      decimal.Decimal `db:"premium_uf" json:"premium_uf"`
	StartDate      time.Time       `db:"start_date" json:"start_date"`
	ExpirationDate time.Time       `db:"expiration_date" json:"expiration_date"`
	Status         string          `db:"status" json:"status"`
	Cluster        *int            `db:"cluster" json:"cluster,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Collection represents the 'collections' table: a single monetary obligation
// (cobranza) tied to a policy. The payment columns are populated together when
// the obligation transitions to PAGADA; cancel_reason when it is CANCELADA.
type Collection struct {
	ID             int64           `db:"id" json:"id"`
	PolicyID       int64           `db:"policy_id" json:"policy_id"`
	AmountUF       decimal.Decimal `db:"amount_uf" json:"amount_uf"`
	IssueDate      time.Time       `db:"issue_date" json:"issue_date"`
	DueDate        time.Time       `db:"due_date" json:"due_date"`
	Status         string          `db:"status" json:"status"`
	PaymentDate    *time.Time      `db:"payment_date" json:"payment_date,omitempty"`
	PaymentMethod  *string         `db:"payment_method" json:"payment_method,omitempty"`
	DocumentNumber *string         `db:"document_number" json:"document_number,omitempty"`
	Observations   *string         `db:"observations" json:"observations,omitempty"`
	CancelReason   *string         `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Alert represents the 'alerts' table. Alerts are created only by the rule
// engine; dedup_key keeps at most one open alert per underlying condition.
type Alert struct {
	ID         int64      `db:"id" json:"id"`
	Category   string     `db:"category" json:"category"`
	Priority   string     `db:"priority" json:"priority"`
	Status     string     `db:"status" json:"status"`
	Title      string     `db:"title" json:"title"`
	Message    string     `db:"message" json:"message"`
	PolicyID   *int64     `db:"policy_id" json:"policy_id,omitempty"`
	ClientID   *int64     `db:"client_id" json:"client_id,omitempty"`
	RuleID     string     `db:"rule_id" json:"rule_id"`
	DedupKey   string     `db:"dedup_key" json:"dedup_key"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ReadAt     *time.Time `db:"read_at" json:"read_at,omitempty"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	LimitDate  *time.Time `db:"limit_date" json:"limit_date,omitempty"`
}

// CollectionStats aggregates the collections book for reporting.
type CollectionStats struct {
	Total           int             `db:"total" json:"total"`
	Pending         int             `db:"pending" json:"pending"`
	InProcess       int             `db:"in_process" json:"in_process"`
	Paid            int             `db:"paid" json:"paid"`
	Cancelled       int             `db:"cancelled" json:"cancelled"`
	Overdue         int             `db:"overdue" json:"overdue"`
	PendingAmountUF decimal.Decimal `db:"pending_amount_uf" json:"pending_amount_uf"`
	AvgDaysOverdue  float64         `db:"avg_days_overdue" json:"avg_days_overdue"`
}

// AlertStats aggregates alert counts by state for the panel header.
type AlertStats struct {
	Pending      int `db:"pending" json:"pending"`
	Read         int `db:"read" json:"read"`
	Resolved     int `db:"resolved" json:"resolved"`
	Discarded    int `db:"discarded" json:"discarded"`
	OpenCritical int `db:"open_critical" json:"open_critical"`
	PastLimit    int `db:"past_limit" json:"past_limit"`
}
