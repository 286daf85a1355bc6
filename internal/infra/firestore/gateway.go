// Package firestore stores sessions as documents in a per-round collection, with the
// leaderboard under {collection}/leaderboard/entries.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"escape-room-service/internal/domain"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Gateway struct {
	client     *firestore.Client
	collection string
}

type sessionDoc struct {
	Name                string     `firestore:"name"`
	RollNo              string     `firestore:"rollNo"`
	UID                 string     `firestore:"uid,omitempty"`
	Email               string     `firestore:"email,omitempty"`
	Score               int        `firestore:"score"`
	ChallengesCompleted int        `firestore:"challengesCompleted"`
	Status              string     `firestore:"status"`
	StartedAt           time.Time  `firestore:"startedAt,serverTimestamp"`
	CompletedAt         *time.Time `firestore:"completedAt,omitempty"`
	LastUpdated         time.Time  `firestore:"lastUpdated,serverTimestamp"`
}

type entryDoc struct {
	Name                string    `firestore:"name"`
	RollNo              string    `firestore:"rollNo"`
	UID                 string    `firestore:"uid,omitempty"`
	Email               string    `firestore:"email,omitempty"`
	Score               int       `firestore:"score"`
	ChallengesCompleted int       `firestore:"challengesCompleted"`
	Status              string    `firestore:"status"`
	CompletedAt         time.Time `firestore:"completedAt"`
}

// New connects to Firestore. With FIRESTORE_EMULATOR_HOST set the client talks to the
// emulator and needs no credentials.
func New(ctx context.Context, projectID, collection string, opts ...option.ClientOption) (*Gateway, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firestore client: %w", err)
	}
	return NewWithClient(client, collection), nil
}

func NewWithClient(client *firestore.Client, collection string) *Gateway {
	return &Gateway{client: client, collection: collection}
}

func (g *Gateway) Close() error {
	return g.client.Close()
}

// Ping runs a one-document read against the sessions collection.
func (g *Gateway) Ping(ctx context.Context) error {
	iter := g.sessions().Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func (g *Gateway) sessions() *firestore.CollectionRef {
	return g.client.Collection(g.collection)
}

func (g *Gateway) entries() *firestore.CollectionRef {
	return g.client.Collection(g.collection).Doc("leaderboard").Collection("entries")
}

func (g *Gateway) CreateSession(ctx context.Context, fields domain.NewSession) (domain.Session, error) {
	identity := fields.Identity.Normalized()
	status := fields.Status
	if status == "" {
		status = domain.StatusActive
	}

	ref := g.sessions().NewDoc()
	doc := sessionDoc{
		Name:                identity.Name,
		RollNo:              identity.RollNo,
		UID:                 identity.UID,
		Email:               identity.Email,
		Score:               fields.Score,
		ChallengesCompleted: fields.ChallengesCompleted,
		Status:              string(status),
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}

	// read back the server-assigned timestamps
	snap, err := ref.Get(ctx)
	if err != nil {
		return domain.Session{}, fmt.Errorf("read created session: %w", err)
	}
	return decodeSession(snap)
}

func (g *Gateway) FindSession(ctx context.Context, identity domain.Identity) (domain.Session, error) {
	identity = identity.Normalized()

	query := g.sessions().Where("uid", "==", identity.UID)
	if identity.UID == "" {
		query = g.sessions().Where("name", "==", identity.Name).Where("rollNo", "==", identity.RollNo)
	}
	iter := query.Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("find session: %w", err)
	}
	return decodeSession(snap)
}

// UpdateSession applies the update in a transaction so completed never decreases.
func (g *Gateway) UpdateSession(ctx context.Context, id string, update domain.SessionUpdate) error {
	ref := g.sessions().Doc(id)
	err := g.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		var current sessionDoc
		if err := snap.DataTo(&current); err != nil {
			return err
		}

		updates := []firestore.Update{{Path: "lastUpdated", Value: firestore.ServerTimestamp}}
		if update.Score != nil {
			score := *update.Score
			if score < 0 {
				score = 0
			}
			updates = append(updates, firestore.Update{Path: "score", Value: score})
		}
		if update.ChallengesCompleted != nil && *update.ChallengesCompleted > current.ChallengesCompleted {
			updates = append(updates, firestore.Update{Path: "challengesCompleted", Value: *update.ChallengesCompleted})
		}
		if update.Status != nil {
			updates = append(updates, firestore.Update{Path: "status", Value: string(*update.Status)})
		}
		if update.MarkCompleted && current.CompletedAt == nil {
			updates = append(updates, firestore.Update{Path: "completedAt", Value: firestore.ServerTimestamp})
		}
		return tx.Update(ref, updates)
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (g *Gateway) WriteLeaderboardEntry(ctx context.Context, id string, entry domain.LeaderboardEntry) error {
	doc := entryDoc{
		Name:                entry.Identity.Name,
		RollNo:              entry.Identity.RollNo,
		UID:                 entry.Identity.UID,
		Email:               entry.Identity.Email,
		Score:               entry.Score,
		ChallengesCompleted: entry.ChallengesCompleted,
		Status:              string(entry.Status),
		CompletedAt:         entry.CompletedAt,
	}
	if _, err := g.entries().Doc(id).Set(ctx, doc); err != nil {
		return fmt.Errorf("write leaderboard entry: %w", err)
	}
	return nil
}

func (g *Gateway) TopEntries(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	query := g.entries().OrderBy("score", firestore.Desc).OrderBy("completedAt", firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []domain.LeaderboardEntry
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read leaderboard: %w", err)
		}
		var doc entryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode leaderboard entry: %w", err)
		}
		out = append(out, domain.LeaderboardEntry{
			ID:                  snap.Ref.ID,
			Identity:            domain.Identity{Name: doc.Name, RollNo: doc.RollNo, UID: doc.UID, Email: doc.Email},
			Score:               doc.Score,
			ChallengesCompleted: doc.ChallengesCompleted,
			Status:              domain.SessionStatus(doc.Status),
			CompletedAt:         doc.CompletedAt,
		})
	}
	return out, nil
}

func decodeSession(snap *firestore.DocumentSnapshot) (domain.Session, error) {
	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return domain.Session{
		ID:                  snap.Ref.ID,
		Identity:            domain.Identity{Name: doc.Name, RollNo: doc.RollNo, UID: doc.UID, Email: doc.Email},
		Score:               doc.Score,
		ChallengesCompleted: doc.ChallengesCompleted,
		Status:              domain.SessionStatus(doc.Status),
		StartedAt:           doc.StartedAt,
		CompletedAt:         doc.CompletedAt,
		LastUpdated:         doc.LastUpdated,
	}, nil
}
