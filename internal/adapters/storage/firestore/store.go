package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/chat-relay/internal/domain"
)

const collectionName = "conversations"

type Store struct {
	client *firestore.Client
	now    func() time.Time
}

// NewStore creates a Firestore store.
// Uses the project passed (RELAY_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client, now: time.Now}, nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) conversationsCol() *firestore.CollectionRef {
	return s.client.Collection(collectionName)
}

func (s *Store) conversationDoc(id domain.Identity) *firestore.DocumentRef {
	return s.conversationsCol().Doc(string(id))
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type turnDoc struct {
	Role string `firestore:"role"`
	Text string `firestore:"text"`
}

type conversationDoc struct {
	Turns     []turnDoc `firestore:"turns"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func toDoc(conv domain.Conversation, now time.Time) conversationDoc {
	turns := make([]turnDoc, 0, len(conv))
	for _, t := range conv {
		turns = append(turns, turnDoc{Role: string(t.Speaker), Text: t.Text})
	}
	return conversationDoc{Turns: turns, UpdatedAt: now}
}

func fromDoc(doc conversationDoc) domain.Conversation {
	conv := make(domain.Conversation, 0, len(doc.Turns))
	for _, t := range doc.Turns {
		conv = append(conv, domain.Turn{Speaker: domain.Speaker(t.Role), Text: t.Text})
	}
	return conv
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) Load(ctx context.Context, id domain.Identity) (domain.Conversation, error) {
	snap, err := s.conversationDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.Conversation{}, nil
		}
		return nil, fmt.Errorf("%w: firestore Load: %w", domain.ErrStorage, err)
	}

	var doc conversationDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("%w: firestore Load decode: %v", domain.ErrSessionCorrupted, err)
	}

	return fromDoc(doc), nil
}

func (s *Store) Save(ctx context.Context, id domain.Identity, conv domain.Conversation) error {
	_, err := s.conversationDoc(id).Set(ctx, toDoc(conv, s.now()))
	if err != nil {
		return fmt.Errorf("%w: firestore Save: %w", domain.ErrStorage, err)
	}
	return nil
}

func (s *Store) Expire(ctx context.Context, id domain.Identity) error {
	// Delete of a missing document succeeds unless a precondition is given.
	_, err := s.conversationDoc(id).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("%w: firestore Expire: %w", domain.ErrStorage, err)
	}
	return nil
}

func (s *Store) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	q := s.conversationsCol().Where("updated_at", "<", cutoff)

	iter := q.Documents(ctx)
	defer iter.Stop()

	bw := s.client.BulkWriter(ctx)

	var jobs []*firestore.BulkWriterJob
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			bw.End()
			return 0, fmt.Errorf("%w: firestore Sweep: %w", domain.ErrStorage, err)
		}

		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("%w: firestore Sweep enqueue: %w", domain.ErrStorage, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	removed := 0
	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if len(errs) > 0 {
		return removed, fmt.Errorf("%w: firestore Sweep: %w", domain.ErrStorage, errors.Join(errs...))
	}
	return removed, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
