package repository

import (
	"context"
	"errors"

	"gradient/model"
	"gradient/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is a Store backed by a MongoDB database. Documents are keyed by
// _id, which mirrors their "id" field.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    *logrus.Entry
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{
		client: client,
		db:     client.Database(dbName),
		log:    utils.Component("mongo-store"),
	}
}

func (s *MongoStore) Database() *mongo.Database {
	return s.db
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Put(ctx context.Context, collection, id string, fields model.Document) error {
	timer := utils.TrackDBOperation("put", collection)
	defer timer.ObserveDuration()

	_, err := s.db.Collection(collection).ReplaceOne(ctx,
		bson.M{"_id": id}, toBSON(id, fields), options.Replace().SetUpsert(true))
	if err != nil {
		utils.TrackError("database", "put_failed")
		return storeError("put", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Patch(ctx context.Context, collection, id string, fields model.Document) error {
	timer := utils.TrackDBOperation("patch", collection)
	defer timer.ObserveDuration()

	result, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, buildUpdate(fields))
	if err != nil {
		utils.TrackError("database", "patch_failed")
		return storeError("patch", collection, id, err)
	}
	if result.MatchedCount == 0 {
		return storeError("patch", collection, id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	timer := utils.TrackDBOperation("delete", collection)
	defer timer.ObserveDuration()

	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		utils.TrackError("database", "delete_failed")
		return storeError("delete", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (model.Document, error) {
	timer := utils.TrackDBOperation("get", collection)
	defer timer.ObserveDuration()

	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storeError("get", collection, id, ErrNotFound)
		}
		utils.TrackError("database", "get_failed")
		return nil, storeError("get", collection, id, err)
	}
	return fromBSON(raw), nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, filter Filter) ([]model.Document, error) {
	timer := utils.TrackDBOperation("query", collection)
	defer timer.ObserveDuration()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(collection).Find(ctx, filterBSON(filter), opts)
	if err != nil {
		utils.TrackError("database", "query_failed")
		return nil, storeError("query", collection, "", err)
	}
	defer cursor.Close(ctx)

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		utils.TrackError("database", "query_failed")
		return nil, storeError("query", collection, "", err)
	}
	docs := make([]model.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, fromBSON(raw))
	}
	return docs, nil
}

// Watch opens a change stream on the collection. Every change event causes a
// re-query of the filtered set, which is published as a full snapshot.
func (s *MongoStore) Watch(ctx context.Context, collection string, filter Filter) (*Subscription, error) {
	sub := NewSubscription(ctx)
	stream, err := s.db.Collection(collection).Watch(sub.Context(), mongo.Pipeline{})
	if err != nil {
		sub.Close()
		utils.TrackError("database", "watch_failed")
		return nil, storeError("watch", collection, "", err)
	}
	go s.runWatch(collection, filter, stream, sub)
	return sub, nil
}

func (s *MongoStore) runWatch(collection string, filter Filter, stream *mongo.ChangeStream, sub *Subscription) {
	ctx := sub.Context()
	defer stream.Close(context.Background())

	log := s.log.WithField("collection", collection)
	emit := func() bool {
		docs, err := s.Query(ctx, collection, filter)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Error("re-query for snapshot failed")
				sub.Fail(err)
			}
			return false
		}
		return sub.Publish(docs)
	}

	if !emit() {
		return
	}
	for stream.Next(ctx) {
		if !emit() {
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	err := stream.Err()
	if err == nil {
		err = ErrSubscriptionEnd
	}
	log.WithError(err).Warn("change stream ended")
	utils.TrackError("database", "watch_ended")
	sub.Fail(storeError("watch", collection, "", err))
}

func (s *MongoStore) Batch() Batch {
	return &mongoBatch{store: s}
}

type mongoBatch struct {
	store     *MongoStore
	ops       []batchOp
	committed bool
}

func (b *mongoBatch) Put(collection, id string, fields model.Document) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, fields: cloneDocument(fields)})
}

func (b *mongoBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, delete: true})
}

func (b *mongoBatch) Len() int {
	return len(b.ops)
}

// Commit applies the batch inside a multi-document transaction.
func (b *mongoBatch) Commit(ctx context.Context) error {
	if b.committed {
		return storeError("commit", "", "", ErrBatchCommitted)
	}
	b.committed = true

	timer := utils.TrackDBOperation("batch", "")
	defer timer.ObserveDuration()

	session, err := b.store.client.StartSession()
	if err != nil {
		utils.TrackError("database", "session_failed")
		return storeError("commit", "", "", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, op := range b.ops {
			coll := b.store.db.Collection(op.collection)
			if op.delete {
				if _, err := coll.DeleteOne(sc, bson.M{"_id": op.id}); err != nil {
					return nil, err
				}
				continue
			}
			if _, err := coll.ReplaceOne(sc, bson.M{"_id": op.id}, toBSON(op.id, op.fields),
				options.Replace().SetUpsert(true)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		utils.TrackError("database", "batch_failed")
		return storeError("commit", "", "", err)
	}
	return nil
}

func filterBSON(filter Filter) bson.M {
	if filter.IsZero() {
		return bson.M{}
	}
	return bson.M{filter.Field: filter.Value}
}

func toBSON(id string, fields model.Document) bson.M {
	doc := bson.M{"_id": id}
	for k, v := range fields {
		doc[k] = v
	}
	if _, ok := doc["id"]; !ok {
		doc["id"] = id
	}
	return doc
}

// buildUpdate translates a Patch field set into a MongoDB update document.
func buildUpdate(fields model.Document) bson.M {
	set := bson.M{}
	unset := bson.M{}
	addToSet := bson.M{}
	pull := bson.M{}
	for key, value := range fields {
		switch v := value.(type) {
		case deleteField:
			unset[key] = ""
		case arrayUnion:
			addToSet[key] = bson.M{"$each": v.values}
		case arrayRemove:
			pull[key] = bson.M{"$in": v.values}
		default:
			set[key] = value
		}
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	if len(pull) > 0 {
		update["$pull"] = pull
	}
	return update
}

// fromBSON converts a decoded MongoDB document into plain maps and slices.
func fromBSON(raw bson.M) model.Document {
	doc := make(model.Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		doc[k] = plainValue(v)
	}
	if _, ok := doc["id"]; !ok {
		if id, ok := raw["_id"].(string); ok {
			doc["id"] = id
		}
	}
	return doc
}

func plainValue(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.M:
		out := make(model.Document, len(val))
		for k, item := range val {
			out[k] = plainValue(item)
		}
		return out
	case primitive.D:
		out := make(model.Document, len(val))
		for _, e := range val {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case primitive.A:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	case int32:
		return int64(val)
	}
	return v
}
