package batches

import (
	"context"
	"strconv"
	"strings"

	"github.com/fdg312/menu-batches/internal/storage"
	"github.com/fdg312/menu-batches/internal/userctx"
)

// defaultUserID is used when auth is disabled.
const defaultUserID = "default"

type actor struct {
	userID string
	role   string
}

func actorFromContext(ctx context.Context) actor {
	userID, _ := userctx.GetUserID(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return actor{userID: defaultUserID}
	}
	return actor{userID: userID, role: userctx.GetRole(ctx)}
}

// enforced is false when the request carries no role (auth disabled).
func (a actor) enforced() bool {
	return a.role != ""
}

func (a actor) is(role string) bool {
	return !a.enforced() || a.role == role
}

// consumerID parses the subject of a consumer token.
func (a actor) consumerID() (int64, bool) {
	id, err := strconv.ParseInt(a.userID, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (a actor) ownsAsProducer(b storage.MenuBatch) bool {
	return !a.enforced() || (a.role == userctx.RoleProducer && b.ProducerID == a.userID)
}

func (a actor) ownsAsConsumer(consumerID int64) bool {
	if !a.enforced() {
		return true
	}
	id, ok := a.consumerID()
	return a.role == userctx.RoleConsumer && ok && id == consumerID
}

func (a actor) canRead(b storage.MenuBatch) bool {
	if !a.enforced() || a.role == userctx.RoleOperator {
		return true
	}
	return a.ownsAsProducer(b) || a.ownsAsConsumer(b.ConsumerID)
}
