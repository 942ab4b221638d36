package core

import (
	"strings"
	"time"
)

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

const (
	StatusPendingVerification UserStatus = "pending_verification"
	StatusActive              UserStatus = "active"
	StatusSuspended           UserStatus = "suspended"
	StatusDeleted             UserStatus = "deleted"
)

const (
	MaxDescriptionLen = 200
	MaxNotesLen       = 500
	MaxTags           = 3
)

// Transaction dates are bounded to a sane window: nothing before 1900 and
// nothing more than one year into the future.
var MinTransactionDate = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

type (
	TransactionType string

	UserStatus string

	Profile struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatarUrl,omitempty"`
		Phone     string `json:"phone,omitempty"`
	}

	Settings struct {
		Currency string `json:"currency"`
		Theme    string `json:"theme"`
		DialCode string `json:"dialCode,omitempty"`
	}

	User struct {
		ID           int64      `json:"id"`
		Email        string     `json:"email"`
		PasswordHash []byte     `json:"-"`
		Profile      Profile    `json:"profile"`
		Settings     Settings   `json:"settings"`
		Status       UserStatus `json:"status"`
		CreatedAt    time.Time  `json:"createdAt"`
		UpdatedAt    time.Time  `json:"updatedAt"`
	}

	Category struct {
		ID            int64           `json:"id"`
		UserID        int64           `json:"-"`
		Name          string          `json:"name"`
		Type          TransactionType `json:"type"`
		ParentID      *int64          `json:"parentId,omitempty"`
		Color         string          `json:"color,omitempty"`
		Icon          string          `json:"icon,omitempty"`
		IsDefault     bool            `json:"isDefault"`
		MonthlyBudget Money           `json:"monthlyBudget"`
		CreatedAt     time.Time       `json:"createdAt"`
		UpdatedAt     time.Time       `json:"updatedAt"`
	}

	Transaction struct {
		ID          int64           `json:"id"`
		UserID      int64           `json:"-"`
		CategoryID  int64           `json:"categoryId"`
		Type        TransactionType `json:"type"`
		Amount      Money           `json:"amount"`
		Description string          `json:"description"`
		Notes       string          `json:"notes,omitempty"`
		Tags        []string        `json:"tags,omitempty"`
		Date        time.Time       `json:"date"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}
)

// Valid reports whether t is one of the two known transaction types.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// CanTransitionTo reports whether the user status state machine allows
// moving from s to next. Deleted is terminal.
func (s UserStatus) CanTransitionTo(next UserStatus) bool {
	switch s {
	case StatusPendingVerification:
		return next == StatusActive || next == StatusDeleted
	case StatusActive:
		return next == StatusSuspended || next == StatusDeleted
	case StatusSuspended:
		return next == StatusActive || next == StatusDeleted
	default:
		return false
	}
}

// CanLogin reports whether a user in this status may authenticate.
// Pending users may log in so they can re-request a verification email.
func (s UserStatus) CanLogin() bool {
	return s == StatusActive || s == StatusPendingVerification
}

// Validate checks category fields for creation.
func (c Category) Validate() *ValidationError {
	var ve ValidationError
	if strings.TrimSpace(c.Name) == "" {
		ve.Add("name", "name is required")
	} else if len(c.Name) > 100 {
		ve.Add("name", "name too long (max 100 characters)")
	}
	if !c.Type.Valid() {
		ve.Add("type", "type must be income or expense")
	}
	if c.Color != "" && !hexColorRE.MatchString(c.Color) {
		ve.Add("color", "color must be a hex value like #ff0000")
	}
	if c.MonthlyBudget.Cents < 0 {
		ve.Add("monthlyBudget", "monthly budget cannot be negative")
	}
	return ve.OrNil()
}

// Validate checks transaction fields for creation and update.
func (t Transaction) Validate() *ValidationError {
	var ve ValidationError
	if !t.Type.Valid() {
		ve.Add("type", "type must be income or expense")
	}
	if t.Type == TypeIncome {
		if t.Amount.Cents < 0 {
			ve.Add("amount", "income amount cannot be negative")
		}
	} else if t.Amount.Cents <= 0 {
		ve.Add("amount", "amount must be a positive value")
	}
	if strings.TrimSpace(t.Description) == "" {
		ve.Add("description", "description is required")
	} else if len(t.Description) > MaxDescriptionLen {
		ve.Add("description", "description too long (max 200 characters)")
	}
	if len(t.Notes) > MaxNotesLen {
		ve.Add("notes", "notes too long (max 500 characters)")
	}
	if len(t.Tags) > MaxTags {
		ve.Add("tags", "at most 3 tags are allowed")
	}
	for _, tag := range t.Tags {
		if strings.TrimSpace(tag) == "" {
			ve.Add("tags", "tags cannot be blank")
			break
		}
	}
	if t.CategoryID <= 0 {
		ve.Add("categoryId", "categoryId is required")
	}
	if t.Date.IsZero() {
		ve.Add("date", "date is required")
	} else if t.Date.Before(MinTransactionDate) {
		ve.Add("date", "date cannot be before 1900")
	} else if t.Date.After(time.Now().AddDate(1, 0, 0)) {
		ve.Add("date", "date cannot be more than one year in the future")
	}
	return ve.OrNil()
}

// CloneWith returns a copy of t as a new transaction, applying any
// overrides that are set. Identity and timestamps are reset.
func (t Transaction) CloneWith(description string, amount *Money, date *time.Time, notes *string) Transaction {
	out := t
	out.ID = 0
	out.CreatedAt = time.Time{}
	out.UpdatedAt = time.Time{}
	out.Tags = append([]string(nil), t.Tags...)
	if strings.TrimSpace(description) != "" {
		out.Description = description
	}
	if amount != nil {
		out.Amount = *amount
	}
	if date != nil {
		out.Date = *date
	}
	if notes != nil {
		out.Notes = *notes
	}
	return out
}
