package workflow

import "github.com/google/uuid"

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// idempotencyKey identifies one step of one template for one entity.
func idempotencyKey(entityID, templateID, stepID string) string {
	return entityID + "/" + templateID + "/" + stepID
}
