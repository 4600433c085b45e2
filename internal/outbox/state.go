package outbox

import (
	"strings"

	"github.com/google/uuid"
)

// PaperPrefix marks order ids issued by the paper broker.
const PaperPrefix = "PAPER_"

// NewOrderID returns a unique order id with the given prefix.
func NewOrderID(prefix string) string {
	return prefix + uuid.NewString()
}

func IsPaperOrderID(id string) bool {
	return strings.HasPrefix(id, PaperPrefix) && uuid.Validate(strings.TrimPrefix(id, PaperPrefix)) == nil
}
