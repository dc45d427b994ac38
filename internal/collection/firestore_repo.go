package collection

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const DefaultFirestoreCollection = "pokemons"

type firestoreRecord struct {
	Name      string    `firestore:"name"`
	User      string    `firestore:"user"`
	Types     []string  `firestore:"types"`
	Abilities []string  `firestore:"abilities"`
	Image     string    `firestore:"image"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// FirestoreRepo stores one document per record. Document IDs are derived
// from (user, name) so a second Create for the same pair fails server side.
type FirestoreRepo struct {
	client     *firestore.Client
	collection string
	timeout    time.Duration
}

func NewFirestoreRepo(client *firestore.Client, collection string, timeout time.Duration) *FirestoreRepo {
	if collection == "" {
		collection = DefaultFirestoreCollection
	}
	return &FirestoreRepo{client: client, collection: collection, timeout: timeout}
}

func (r *FirestoreRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func recordDocID(user, name string) string {
	sum := sha256.Sum256([]byte(user + "\x00" + name))
	return hex.EncodeToString(sum[:])
}

func (r *FirestoreRepo) Insert(ctx context.Context, rec *Record) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	id := recordDocID(rec.User, rec.Name)
	_, err := r.client.Collection(r.collection).Doc(id).Create(timeoutCtx, firestoreRecord{
		Name:      rec.Name,
		User:      rec.User,
		Types:     rec.Types,
		Abilities: rec.Abilities,
		Image:     rec.Image,
		CreatedAt: rec.CreatedAt,
	})
	if status.Code(err) == codes.AlreadyExists {
		return ErrAlreadyOwned
	}
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

func (r *FirestoreRepo) FindByNameAndUser(ctx context.Context, name, user string) ([]Record, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	docs, err := r.client.Collection(r.collection).
		Where("name", "==", name).
		Where("user", "==", user).
		Documents(timeoutCtx).GetAll()
	if err != nil {
		return nil, err
	}
	return decodeDocs(docs)
}

// ListByUser sorts client side to avoid a composite index on (user, createdAt).
func (r *FirestoreRepo) ListByUser(ctx context.Context, user string) ([]Record, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	docs, err := r.client.Collection(r.collection).
		Where("user", "==", user).
		Documents(timeoutCtx).GetAll()
	if err != nil {
		return nil, err
	}
	records, err := decodeDocs(docs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (r *FirestoreRepo) Delete(ctx context.Context, id string) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.client.Collection(r.collection).Doc(id).Delete(timeoutCtx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func decodeDocs(docs []*firestore.DocumentSnapshot) ([]Record, error) {
	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		var fr firestoreRecord
		if err := doc.DataTo(&fr); err != nil {
			return nil, err
		}
		records = append(records, Record{
			ID:        doc.Ref.ID,
			Name:      fr.Name,
			User:      fr.User,
			Types:     fr.Types,
			Abilities: fr.Abilities,
			Image:     fr.Image,
			CreatedAt: fr.CreatedAt,
		})
	}
	return records, nil
}
