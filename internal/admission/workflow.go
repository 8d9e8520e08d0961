// Package admission implements the approval gate between pending
// registrations and approved partners. It coordinates the user store and
// the ledger client and emits notification events; it never formats
// user-facing text.
package admission

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"lethai-bot/internal/models"
	"lethai-bot/internal/store"
)

type Result int

const (
	ResultOK Result = iota
	ResultNotFound
	ResultAlreadyExists
	ResultAlreadyApproved
	ResultNotAuthorized
	ResultInvalidInput
	ResultStorageFailed
	// ResultInconsistent means the local record is approved but the ledger
	// write failed; the approval intent stays uncommitted so the reconciler
	// retries it. Reported distinctly so operators can escalate.
	ResultInconsistent
)

type RecipientKind string

const (
	RecipientUser       RecipientKind = "user"
	RecipientAdminGroup RecipientKind = "admin-group"
)

// Notification is an output event for the presentation layer: who to tell,
// which template to render, and the parameters to fill it with.
type Notification struct {
	Kind     RecipientKind
	ChatID   int64
	Template string
	Params   map[string]string
}

// Template keys understood by the presentation layer.
const (
	TemplateRegistrationReceived = "registration_received"
	TemplateNewRegistration      = "new_registration"
	TemplateApprovalSuccess      = "approval_success"
	TemplateUserApproved         = "user_approved"
	TemplateApprovalRejected     = "approval_rejected"
	TemplateUserRejected         = "user_rejected"
	TemplateLedgerSyncFailed     = "ledger_sync_failed"
)

type Outcome struct {
	Result        Result
	User          *models.User
	Notifications []Notification
}

// Ledger is the slice of the spreadsheet client the workflow needs.
type Ledger interface {
	RegisterPartner(ctx context.Context, partnercode, name, contact, username, referralSource string) bool
}

const (
	minNameLen = 2
	maxNameLen = 50
)

type Workflow struct {
	users        *store.Users
	ledger       Ledger
	adminUserID  int64
	adminGroupID int64

	// Per-user locks close the check-then-act race between the "not yet
	// approved" guard and the store update.
	locks sync.Map
}

func NewWorkflow(users *store.Users, ledger Ledger, adminUserID, adminGroupID int64) *Workflow {
	return &Workflow{
		users:        users,
		ledger:       ledger,
		adminUserID:  adminUserID,
		adminGroupID: adminGroupID,
	}
}

// Register creates a pending record for a first-time user and announces it
// to the admin group.
func (w *Workflow) Register(ctx context.Context, telegramID int64, name, phone string) Outcome {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < minNameLen || len([]rune(name)) > maxNameLen {
		return Outcome{Result: ResultInvalidInput}
	}

	if w.users.Find(ctx, telegramID) != nil {
		return Outcome{Result: ResultAlreadyExists}
	}
	if !w.users.Create(ctx, telegramID, name, phone) {
		return Outcome{Result: ResultStorageFailed}
	}

	user := w.users.Find(ctx, telegramID)
	params := map[string]string{
		"id":    strconv.FormatInt(telegramID, 10),
		"name":  name,
		"phone": phone,
	}
	return Outcome{
		Result: ResultOK,
		User:   user,
		Notifications: []Notification{
			{Kind: RecipientUser, ChatID: telegramID, Template: TemplateRegistrationReceived, Params: params},
			{Kind: RecipientAdminGroup, ChatID: w.adminGroupID, Template: TemplateNewRegistration, Params: params},
		},
	}
}

// Approve marks the user approved locally, then registers the partner row
// in the ledger. The actor must be the configured administrator; an
// unauthorized attempt mutates nothing. The store update and the ledger
// write are not atomic: a ledger failure leaves the record approved and
// yields ResultInconsistent with the intent left pending for retry.
func (w *Workflow) Approve(ctx context.Context, actorID, targetID int64, username string) Outcome {
	if actorID != w.adminUserID {
		zap.L().Warn("Unauthorized approval attempt", zap.Int64("actor", actorID), zap.Int64("target", targetID))
		return Outcome{Result: ResultNotAuthorized}
	}

	mu := w.lockFor(targetID)
	mu.Lock()
	defer mu.Unlock()

	user := w.users.Find(ctx, targetID)
	if user == nil {
		return Outcome{Result: ResultNotFound}
	}
	if user.Approved {
		return Outcome{Result: ResultAlreadyApproved, User: user}
	}

	if !w.users.SetApproval(ctx, targetID, true) {
		return Outcome{Result: ResultStorageFailed, User: user}
	}

	// Intent precedes the ledger write so a crash between the two still
	// leaves a retryable trace.
	intentID := w.users.RecordIntent(ctx, targetID)

	partnercode := strconv.FormatInt(targetID, 10)
	params := map[string]string{
		"id":    partnercode,
		"name":  user.Name,
		"phone": user.Phone,
	}

	if !w.ledger.RegisterPartner(ctx, partnercode, user.Name, user.Phone, username, "") {
		zap.L().Error("Ledger registration failed after local approval",
			zap.Int64("telegram_id", targetID), zap.String("intent_id", intentID))
		return Outcome{
			Result: ResultInconsistent,
			User:   user,
			Notifications: []Notification{
				{Kind: RecipientAdminGroup, ChatID: w.adminGroupID, Template: TemplateLedgerSyncFailed, Params: params},
			},
		}
	}

	w.users.CommitIntent(ctx, intentID)
	zap.L().Info("User approved", zap.Int64("telegram_id", targetID))

	return Outcome{
		Result: ResultOK,
		User:   user,
		Notifications: []Notification{
			{Kind: RecipientUser, ChatID: targetID, Template: TemplateApprovalSuccess, Params: params},
			{Kind: RecipientAdminGroup, ChatID: w.adminGroupID, Template: TemplateUserApproved, Params: params},
		},
	}
}

// Reject notifies the user and the admin group without touching stored
// state: the record stays pending, and a rejected user can still be
// approved later. Repeatable.
func (w *Workflow) Reject(ctx context.Context, actorID, targetID int64) Outcome {
	if actorID != w.adminUserID {
		zap.L().Warn("Unauthorized rejection attempt", zap.Int64("actor", actorID), zap.Int64("target", targetID))
		return Outcome{Result: ResultNotAuthorized}
	}

	user := w.users.Find(ctx, targetID)
	if user == nil {
		return Outcome{Result: ResultNotFound}
	}

	params := map[string]string{
		"id":    strconv.FormatInt(targetID, 10),
		"name":  user.Name,
		"phone": user.Phone,
	}
	zap.L().Info("User rejected", zap.Int64("telegram_id", targetID))

	return Outcome{
		Result: ResultOK,
		User:   user,
		Notifications: []Notification{
			{Kind: RecipientUser, ChatID: targetID, Template: TemplateApprovalRejected, Params: params},
			{Kind: RecipientAdminGroup, ChatID: w.adminGroupID, Template: TemplateUserRejected, Params: params},
		},
	}
}

// Delete removes a registration record. Administrative operation.
func (w *Workflow) Delete(ctx context.Context, actorID, targetID int64) Outcome {
	if actorID != w.adminUserID {
		return Outcome{Result: ResultNotAuthorized}
	}
	if !w.users.Delete(ctx, targetID) {
		return Outcome{Result: ResultNotFound}
	}
	return Outcome{Result: ResultOK}
}

func (w *Workflow) lockFor(telegramID int64) *sync.Mutex {
	v, _ := w.locks.LoadOrStore(telegramID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
