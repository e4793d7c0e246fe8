package memory

import (
	"testing"

	"kycflow/internal/verification/store/storetest"
)

func TestInMemorySessionStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.SessionStore {
		return New()
	})
}
