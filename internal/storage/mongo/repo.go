package mongorepo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"goplanit/internal/domain"
)

const collection = "user_preferences"

type Repo struct{ col *mongo.Collection }

func New(db *mongo.Database) *Repo { return &Repo{col: db.Collection(collection)} }

// Connect dials the server and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	cl, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := cl.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return cl, nil
}

// prefDoc is the storage shape: the _id is a real ObjectID while the
// domain carries its 24-hex string form.
type prefDoc struct {
	ID                       primitive.ObjectID `bson:"_id,omitempty"`
	UserID                   string             `bson:"userId"`
	Email                    string             `bson:"email"`
	TravelDates              domain.TravelDates `bson:"travelDates"`
	Budget                   float64            `bson:"budget"`
	Interests                []string           `bson:"interests,omitempty"`
	TransportPreferences     []string           `bson:"transportPreferences,omitempty"`
	AccommodationPreferences []string           `bson:"accommodationPreferences,omitempty"`
	Destination              string             `bson:"destination,omitempty"`
	OriginCity               string             `bson:"originCity,omitempty"`
	OriginLocationCode       string             `bson:"originLocationCode"`
	DestinationLocationCode  string             `bson:"destinationLocationCode"`
	Travelers                int                `bson:"travelers"`
	TripType                 domain.TripType    `bson:"tripType"`
	Itinerary                *domain.Itinerary  `bson:"itinerary,omitempty"`
	CreatedAt                time.Time          `bson:"createdAt"`
	UpdatedAt                time.Time          `bson:"updatedAt"`
}

func toDoc(p domain.Preference) prefDoc {
	return prefDoc{
		UserID:                   p.UserID,
		Email:                    p.Email,
		TravelDates:              p.TravelDates,
		Budget:                   p.Budget,
		Interests:                p.Interests,
		TransportPreferences:     p.TransportPreferences,
		AccommodationPreferences: p.AccommodationPreferences,
		Destination:              p.Destination,
		OriginCity:               p.OriginCity,
		OriginLocationCode:       p.OriginLocationCode,
		DestinationLocationCode:  p.DestinationLocationCode,
		Travelers:                p.Travelers,
		TripType:                 p.TripType,
		Itinerary:                p.Itinerary,
		CreatedAt:                p.CreatedAt,
		UpdatedAt:                p.UpdatedAt,
	}
}

func (d prefDoc) toDomain() domain.Preference {
	return domain.Preference{
		ID:                       d.ID.Hex(),
		UserID:                   d.UserID,
		Email:                    d.Email,
		TravelDates:              d.TravelDates,
		Budget:                   d.Budget,
		Interests:                d.Interests,
		TransportPreferences:     d.TransportPreferences,
		AccommodationPreferences: d.AccommodationPreferences,
		Destination:              d.Destination,
		OriginCity:               d.OriginCity,
		OriginLocationCode:       d.OriginLocationCode,
		DestinationLocationCode:  d.DestinationLocationCode,
		Travelers:                d.Travelers,
		TripType:                 d.TripType,
		Itinerary:                d.Itinerary,
		CreatedAt:                d.CreatedAt,
		UpdatedAt:                d.UpdatedAt,
	}
}

func oid(id string) (primitive.ObjectID, error) {
	o, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.ErrInvalidID
	}
	return o, nil
}

func (r *Repo) Create(ctx context.Context, p domain.Preference) (string, error) {
	now := time.Now().UTC()
	d := toDoc(p)
	d.ID = primitive.NewObjectID()
	d.CreatedAt = now
	d.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, d); err != nil {
		return "", err
	}
	return d.ID.Hex(), nil
}

func (r *Repo) FindByID(ctx context.Context, id string) (domain.Preference, error) {
	o, err := oid(id)
	if err != nil {
		return domain.Preference{}, err
	}
	var d prefDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": o}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Preference{}, domain.ErrNotFound
		}
		return domain.Preference{}, err
	}
	return d.toDomain(), nil
}

func (r *Repo) UpdateItinerary(ctx context.Context, id string, it domain.Itinerary) (domain.Preference, error) {
	o, err := oid(id)
	if err != nil {
		return domain.Preference{}, err
	}
	var d prefDoc
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": o},
		bson.M{"$set": bson.M{"itinerary": it, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Preference{}, domain.ErrNotFound
		}
		return domain.Preference{}, err
	}
	return d.toDomain(), nil
}

func (r *Repo) UpdateFields(ctx context.Context, id string, u domain.PreferenceUpdate) (domain.Preference, error) {
	o, err := oid(id)
	if err != nil {
		return domain.Preference{}, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if u.Interests != nil {
		set["interests"] = u.Interests
	}
	if u.Budget != nil {
		set["budget"] = *u.Budget
	}
	if u.TransportPreferences != nil {
		set["transportPreferences"] = u.TransportPreferences
	}
	if u.AccommodationPreferences != nil {
		set["accommodationPreferences"] = u.AccommodationPreferences
	}
	var d prefDoc
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": o},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Preference{}, domain.ErrNotFound
		}
		return domain.Preference{}, err
	}
	return d.toDomain(), nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string, pg domain.PageQuery) (domain.PreferencesPage, error) {
	if pg.Page < 1 {
		pg.Page = 1
	}
	if pg.Limit < 1 {
		pg.Limit = 10
	}
	filter := bson.M{"userId": userID}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return domain.PreferencesPage{}, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((pg.Page - 1) * pg.Limit)).
		SetLimit(int64(pg.Limit))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return domain.PreferencesPage{}, err
	}
	defer cur.Close(ctx)

	out := domain.PreferencesPage{Total: total}
	for cur.Next(ctx) {
		var d prefDoc
		if err := cur.Decode(&d); err != nil {
			return domain.PreferencesPage{}, err
		}
		out.Items = append(out.Items, d.toDomain())
	}
	return out, cur.Err()
}
