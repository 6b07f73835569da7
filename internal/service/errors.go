package service

import (
	"errors"

	"github.com/MostroP2P/mostrix/models"
)

// ErrNoCounterparty means the trade has not disclosed a peer pubkey yet.
var ErrNoCounterparty = errors.New("counterparty pubkey unknown")

// CantDoError carries the coordinator's rejection code for a request it
// refused to process.
type CantDoError struct {
	Reason models.CantDoReason
}

func (e *CantDoError) Error() string {
	return e.Reason.Description()
}

// cantDo converts a cant-do response into a typed error, nil otherwise.
func cantDo(msg *models.Message) error {
	reason, ok := msg.CantDoOf()
	if !ok {
		return nil
	}
	return &CantDoError{Reason: reason}
}
