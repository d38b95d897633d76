package firestore_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	firestorestore "github.com/PabloGalante/chat-relay/internal/adapters/storage/firestore"
	"github.com/PabloGalante/chat-relay/internal/adapters/storage/storagetest"
	"github.com/PabloGalante/chat-relay/internal/domain"
)

// Runs against the Firestore emulator only:
//
//	gcloud emulators firestore start --host-port=localhost:8081
//	FIRESTORE_EMULATOR_HOST=localhost:8081 go test ./internal/adapters/storage/firestore/
func TestFirestoreContract(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	n := 0
	storagetest.Run(t, func(t *testing.T) domain.SessionStore {
		n++
		// a distinct project per subtest keeps the emulator's data isolated
		project := fmt.Sprintf("relay-test-%d-%d", time.Now().UnixNano(), n)
		s, err := firestorestore.NewStore(context.Background(), project)
		require.NoError(t, err)
		return s
	})
}
