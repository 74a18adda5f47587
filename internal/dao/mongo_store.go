package dao

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/upcast-project/upconsent/internal/models"
)

// Collection names
const (
	RequestsCollection   = "requests"
	OntologiesCollection = "ontologies"
	OwnersCollection     = "owners"
	RequestersCollection = "requesters"
)

// NewMongoStores creates the MongoDB backed stores on db
func NewMongoStores(db *mongo.Database) Stores {
	return Stores{
		Requests:   NewMongoRequestStore(db),
		Ontologies: NewMongoOntologyStore(db),
		Users:      NewMongoUserStore(db),
	}
}

// MongoRequestStore stores consent requests in the requests collection
type MongoRequestStore struct {
	coll *mongo.Collection
}

// NewMongoRequestStore creates a new MongoRequestStore
func NewMongoRequestStore(db *mongo.Database) *MongoRequestStore {
	return &MongoRequestStore{coll: db.Collection(RequestsCollection)}
}

// normalizePolicy converts driver specific container types in the free-form
// policy into the plain JSON shapes the policy parser expects.
func normalizePolicy(req *models.ConsentRequest) {
	if req.Policy == nil {
		return
	}
	if m, ok := plainValue(req.Policy).(map[string]interface{}); ok {
		req.Policy = m
	}
}

func plainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = plainValue(item)
		}
		return out
	case primitive.M:
		return plainValue(map[string]interface{}(t))
	case primitive.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case primitive.A:
		return plainValue([]interface{}(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = plainValue(item)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}

// Create inserts a new consent request
func (s *MongoRequestStore) Create(ctx context.Context, req *models.ConsentRequest) error {
	if _, err := s.coll.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("failed to create consent request: %w", err)
	}
	return nil
}

// GetByID retrieves a consent request by ID
func (s *MongoRequestStore) GetByID(ctx context.Context, id string) (*models.ConsentRequest, error) {
	var req models.ConsentRequest
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&req); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get consent request: %w", err)
	}
	normalizePolicy(&req)
	req.Normalize()
	return &req, nil
}

// Update replaces a consent request document
func (s *MongoRequestStore) Update(ctx context.Context, req *models.ConsentRequest) error {
	result, err := s.coll.ReplaceOne(ctx, bson.M{"_id": req.ID}, req)
	if err != nil {
		return fmt.Errorf("failed to update consent request: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes a consent request
func (s *MongoRequestStore) Delete(ctx context.Context, id string) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete consent request: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// List retrieves consent requests matching the filter, newest first
func (s *MongoRequestStore) List(ctx context.Context, filter models.RequestFilter) ([]models.ConsentRequest, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.UID != "" {
		switch filter.Role {
		case models.RoleOwner:
			query["owners"] = filter.UID
		case models.RoleRequester:
			query["requester.requesterId"] = filter.UID
		default:
			query["$or"] = bson.A{
				bson.M{"owners": filter.UID},
				bson.M{"requester.requesterId": filter.UID},
			}
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdTime", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list consent requests: %w", err)
	}

	requests := []models.ConsentRequest{}
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode consent requests: %w", err)
	}
	for i := range requests {
		normalizePolicy(&requests[i])
		requests[i].Normalize()
	}
	return requests, nil
}

// MongoOntologyStore stores ontology metadata in the ontologies collection
type MongoOntologyStore struct {
	coll *mongo.Collection
}

// NewMongoOntologyStore creates a new MongoOntologyStore
func NewMongoOntologyStore(db *mongo.Database) *MongoOntologyStore {
	return &MongoOntologyStore{coll: db.Collection(OntologiesCollection)}
}

// Create inserts ontology metadata
func (s *MongoOntologyStore) Create(ctx context.Context, ontology *models.Ontology) error {
	if _, err := s.coll.InsertOne(ctx, ontology); err != nil {
		return fmt.Errorf("failed to create ontology: %w", err)
	}
	return nil
}

// GetByID retrieves ontology metadata by ID
func (s *MongoOntologyStore) GetByID(ctx context.Context, id string) (*models.Ontology, error) {
	var ontology models.Ontology
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&ontology); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ontology: %w", err)
	}
	return &ontology, nil
}

// List retrieves the ontologies visible to uid, or all when uid is empty
func (s *MongoOntologyStore) List(ctx context.Context, uid string) ([]models.Ontology, error) {
	query := bson.M{}
	if uid != "" {
		query["$or"] = bson.A{
			bson.M{"uploadedBy": uid},
			bson.M{"_id": models.DefaultOntologyID},
		}
	}

	cursor, err := s.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list ontologies: %w", err)
	}

	ontologies := []models.Ontology{}
	if err := cursor.All(ctx, &ontologies); err != nil {
		return nil, fmt.Errorf("failed to decode ontologies: %w", err)
	}
	return ontologies, nil
}

// Delete removes ontology metadata
func (s *MongoOntologyStore) Delete(ctx context.Context, id string) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete ontology: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MongoUserStore keeps owners and requesters in separate collections
type MongoUserStore struct {
	owners     *mongo.Collection
	requesters *mongo.Collection
}

// NewMongoUserStore creates a new MongoUserStore
func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{
		owners:     db.Collection(OwnersCollection),
		requesters: db.Collection(RequestersCollection),
	}
}

func (s *MongoUserStore) collection(role models.Role) (*mongo.Collection, error) {
	switch role {
	case models.RoleOwner:
		return s.owners, nil
	case models.RoleRequester:
		return s.requesters, nil
	default:
		return nil, fmt.Errorf("unknown role: %s", role)
	}
}

// Create inserts a user unless the email is already registered for the role
func (s *MongoUserStore) Create(ctx context.Context, user *models.User) error {
	coll, err := s.collection(user.Role)
	if err != nil {
		return err
	}

	count, err := coll.CountDocuments(ctx, bson.M{"email": user.Email})
	if err != nil {
		return fmt.Errorf("failed to check user email: %w", err)
	}
	if count > 0 {
		return ErrDuplicateEmail
	}

	if _, err := coll.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *MongoUserStore) findOne(ctx context.Context, role models.Role, filter bson.M) (*models.User, error) {
	coll, err := s.collection(role)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user by role and uid
func (s *MongoUserStore) GetByID(ctx context.Context, role models.Role, uid string) (*models.User, error) {
	return s.findOne(ctx, role, bson.M{"_id": uid})
}

// GetByEmail retrieves a user by role and email
func (s *MongoUserStore) GetByEmail(ctx context.Context, role models.Role, email string) (*models.User, error) {
	return s.findOne(ctx, role, bson.M{"email": email})
}

// FindByAPIToken retrieves the user holding exactly the given token
func (s *MongoUserStore) FindByAPIToken(ctx context.Context, role models.Role, token string) (*models.User, error) {
	if token == "" {
		return nil, models.ErrNotFound
	}
	return s.findOne(ctx, role, bson.M{"apiToken": token})
}

// Update replaces a user document
func (s *MongoUserStore) Update(ctx context.Context, user *models.User) error {
	coll, err := s.collection(user.Role)
	if err != nil {
		return err
	}
	result, err := coll.ReplaceOne(ctx, bson.M{"_id": user.UID}, user)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes a user
func (s *MongoUserStore) Delete(ctx context.Context, role models.Role, uid string) error {
	coll, err := s.collection(role)
	if err != nil {
		return err
	}
	result, err := coll.DeleteOne(ctx, bson.M{"_id": uid})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// List retrieves all users of a role
func (s *MongoUserStore) List(ctx context.Context, role models.Role) ([]models.User, error) {
	coll, err := s.collection(role)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "email", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}
