package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/quiltchat/message-service/internal/domain"
	"github.com/quiltchat/message-service/internal/store"
)

// Store implements store.Store on MongoDB. Message and reaction documents use
// composite _ids so message ids are unique per conversation and reaction
// documents are keyed by emoji.
type Store struct {
	client        *mongo.Client
	conversations *mongo.Collection
	groupMembers  *mongo.Collection
	blocks        *mongo.Collection
	messages      *mongo.Collection
	reactions     *mongo.Collection
	rateWindows   *mongo.Collection
}

func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return mongo.Connect(cctx, options.Client().ApplyURI(uri))
}

func New(db *mongo.Database) *Store {
	s := &Store{
		client:        db.Client(),
		conversations: db.Collection("conversations"),
		groupMembers:  db.Collection("group_members"),
		blocks:        db.Collection("blocks"),
		messages:      db.Collection("messages"),
		reactions:     db.Collection("reactions"),
		rateWindows:   db.Collection("rate_windows"),
	}
	ix := mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "server_received_at", Value: -1}},
		Options: options.Index().SetName("conv_received_idx"),
	}
	_, _ = s.messages.Indexes().CreateOne(context.Background(), ix)
	return s
}

func msgKey(convID, msgID string) string           { return convID + ":" + msgID }
func reactionKey(convID, msgID, emoji string) string { return convID + ":" + msgID + ":" + emoji }
func windowKey(actorID, class string) string       { return actorID + ":" + class }

type messageDoc struct {
	Key            string `bson:"_id"`
	domain.Message `bson:",inline"`
}

type reactionDoc struct {
	Key             string `bson:"_id"`
	domain.Reaction `bson:",inline"`
}

type windowDoc struct {
	Key               string `bson:"_id"`
	domain.RateWindow `bson:",inline"`
}

// RunTransaction executes fn inside a Mongo multi-document transaction with
// majority read/write concern. The driver retries transient conflicts, so fn
// must be safe to re-execute.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Majority()).
		SetWriteConcern(writeconcern.Majority())
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, (*txView)(s))
	}, opts)
	return err
}

// txView reuses the collections; isolation comes from the session context
// passed into every call.
type txView Store

func (t *txView) GetMessage(ctx context.Context, convID, msgID string) (*domain.Message, error) {
	var doc messageDoc
	err := t.messages.FindOne(ctx, bson.M{"_id": msgKey(convID, msgID)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc.Message, nil
}

func (t *txView) PutMessage(ctx context.Context, m *domain.Message) error {
	doc := messageDoc{Key: msgKey(m.ConversationID, m.ID), Message: *m}
	_, err := t.messages.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (t *txView) GetReaction(ctx context.Context, convID, msgID, emoji string) (*domain.Reaction, error) {
	var doc reactionDoc
	err := t.reactions.FindOne(ctx, bson.M{"_id": reactionKey(convID, msgID, emoji)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc.Reaction, nil
}

func (t *txView) PutReaction(ctx context.Context, r *domain.Reaction) error {
	doc := reactionDoc{Key: reactionKey(r.ConversationID, r.MessageID, r.Emoji), Reaction: *r}
	_, err := t.reactions.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (t *txView) DeleteReaction(ctx context.Context, convID, msgID, emoji string) error {
	_, err := t.reactions.DeleteOne(ctx, bson.M{"_id": reactionKey(convID, msgID, emoji)})
	return err
}

func (t *txView) GetRateWindow(ctx context.Context, actorID, class string) (*domain.RateWindow, error) {
	var doc windowDoc
	err := t.rateWindows.FindOne(ctx, bson.M{"_id": windowKey(actorID, class)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc.RateWindow, nil
}

func (t *txView) PutRateWindow(ctx context.Context, actorID, class string, w *domain.RateWindow) error {
	doc := windowDoc{Key: windowKey(actorID, class), RateWindow: *w}
	_, err := t.rateWindows.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetGroupMember(ctx context.Context, groupID, uid string) (*domain.GroupMember, error) {
	var gm domain.GroupMember
	err := s.groupMembers.FindOne(ctx, bson.M{"_id": groupID + ":" + uid}).Decode(&gm)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &gm, nil
}

// IsBlocked is symmetric: true if either side has blocked the other.
func (s *Store) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	n, err := s.blocks.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": []string{a + ":" + b, b + ":" + a}}})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) GetMessage(ctx context.Context, convID, msgID string) (*domain.Message, error) {
	return (*txView)(s).GetMessage(ctx, convID, msgID)
}

func (s *Store) ListMessages(ctx context.Context, convID string, limit int64, before time.Time) ([]*domain.Message, error) {
	filter := bson.M{"conversation_id": convID}
	if !before.IsZero() {
		filter["server_received_at"] = bson.M{"$lt": before}
	}
	opts := options.Find().SetSort(bson.D{{Key: "server_received_at", Value: -1}}).SetLimit(limit)
	cur, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*domain.Message{}
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		m := doc.Message
		out = append(out, &m)
	}
	return out, cur.Err()
}

func (s *Store) MarkRead(ctx context.Context, convID, msgID, uid string) error {
	res, err := s.messages.UpdateByID(ctx, msgKey(convID, msgID), bson.M{"$addToSet": bson.M{"read_by": uid}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) AddDeletedFor(ctx context.Context, convID, msgID, uid string) error {
	res, err := s.messages.UpdateByID(ctx, msgKey(convID, msgID), bson.M{"$addToSet": bson.M{"deleted_for": uid}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateConversationPreview(ctx context.Context, convID string, p *domain.MessagePreview) error {
	_, err := s.conversations.UpdateByID(ctx, convID, bson.M{"$set": bson.M{
		"last_message": p,
		"updated_at":   p.SentAt,
	}})
	return err
}
