package service

import (
	"fmt"
	"strings"
	"time"

	"go-pos-ws/internal/model"

	"github.com/google/uuid"
)

// TransactionNumber renders the display number of a transaction:
// INV-YYYYMMDD-XXXX once paid, DRAFT-YYYYMMDD-XXXX before that. XXXX is the
// upper-cased tail of the id and the date is taken in loc.
func TransactionNumber(status model.TransactionStatus, id uuid.UUID, createdAt time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	idText := id.String()
	suffix := strings.ToUpper(idText[len(idText)-4:])
	return fmt.Sprintf("%s-%s-%s", numberPrefix(status), createdAt.In(loc).Format("20060102"), suffix)
}

func numberPrefix(status model.TransactionStatus) string {
	switch status {
	case model.StatusDraft:
		return "DRAFT"
	case model.StatusPaid, model.StatusCompleted:
		return "INV"
	}
	return "INV"
}

// TransactionView is a stored transaction together with its display number.
type TransactionView struct {
	*model.Transaction
	Number string `json:"number"`
}

func newTransactionView(transaction *model.Transaction, loc *time.Location) *TransactionView {
	return &TransactionView{
		Transaction: transaction,
		Number:      TransactionNumber(transaction.Status, transaction.ID, transaction.CreatedAt, loc),
	}
}
