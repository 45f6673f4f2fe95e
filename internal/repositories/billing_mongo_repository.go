package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/datatypes"

	dbm "zapmenu/internal/models/db_models"
	"zapmenu/pkg/utils"
)

const merchantsCollection = "merchants"

// merchantDoc mirrors a merchant document. next_due_date is decoded raw because
// older documents carry it as epoch seconds or ISO strings.
type merchantDoc struct {
	ID            string     `bson:"_id"`
	Name          string     `bson:"name"`
	Email         string     `bson:"email"`
	Document      string     `bson:"document"`
	Phone         string     `bson:"phone"`
	PostalCode    string     `bson:"postal_code"`
	AddressNumber string     `bson:"address_number"`
	CreatedAt     int64      `bson:"created_at"`
	UpdatedAt     int64      `bson:"updated_at"`
	Billing       billingDoc `bson:"billing"`
}

type billingDoc struct {
	Status             string        `bson:"status"`
	NextDueDate        bson.RawValue `bson:"next_due_date,omitempty"`
	ExternalCustomerID string        `bson:"external_customer_id"`
	PaymentMethod      string        `bson:"payment_method"`
	IsRecurrent        bool          `bson:"is_recurrent"`
	LastPaymentID      string        `bson:"last_payment_id"`
	IsVip              bool          `bson:"is_vip"`
	Version            int64         `bson:"version"`
	Meta               string        `bson:"meta,omitempty"`
}

// MongoBillingRepository implements BillingStore over a document database.
type MongoBillingRepository struct {
	coll *mongo.Collection
}

// NewMongoBillingRepository returns a Billing Store over a document database.
// The returned value also implements BillingOverviewRepository.
func NewMongoBillingRepository(db *mongo.Database) *MongoBillingRepository {
	return &MongoBillingRepository{coll: db.Collection(merchantsCollection)}
}

var (
	_ BillingStore              = (*MongoBillingRepository)(nil)
	_ BillingOverviewRepository = (*MongoBillingRepository)(nil)
)

func (r *MongoBillingRepository) CreateMerchant(ctx context.Context, merchant *dbm.Merchant) error {
	if merchant.Subscription.Status == "" {
		merchant.Subscription.Status = dbm.SubStatusTrial
	}
	merchant.Stamp(time.Now())

	billing := bson.M{
		"status":               string(merchant.Subscription.Status),
		"external_customer_id": merchant.Subscription.ExternalCustomerID,
		"payment_method":       string(merchant.Subscription.PaymentMethod),
		"is_recurrent":         merchant.Subscription.IsRecurrent,
		"last_payment_id":      merchant.Subscription.LastPaymentID,
		"is_vip":               merchant.Subscription.IsVip,
		"version":              merchant.Subscription.Version,
	}
	if due := merchant.Subscription.NextDueDate; due != nil {
		billing["next_due_date"] = due.UTC()
	}

	_, err := r.coll.InsertOne(ctx, bson.M{
		"_id":            merchant.ID.String(),
		"name":           merchant.Name,
		"email":          merchant.Email,
		"document":       merchant.Document,
		"phone":          merchant.Phone,
		"postal_code":    merchant.PostalCode,
		"address_number": merchant.AddressNumber,
		"created_at":     merchant.CreatedAt,
		"updated_at":     merchant.UpdatedAt,
		"billing":        billing,
	})
	return err
}

func (r *MongoBillingRepository) DeleteMerchant(ctx context.Context, id uuid.UUID) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	return err
}

func (r *MongoBillingRepository) FindMerchant(ctx context.Context, id uuid.UUID) (*dbm.Merchant, error) {
	var doc merchantDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toModel()
}

func (r *MongoBillingRepository) UpdateProfile(ctx context.Context, id uuid.UUID, profile MerchantProfile) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{
		"name":           profile.Name,
		"email":          profile.Email,
		"document":       profile.Document,
		"phone":          profile.Phone,
		"postal_code":    profile.PostalCode,
		"address_number": profile.AddressNumber,
		"updated_at":     time.Now().Unix(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrMerchantNotFound
	}
	return nil
}

func (r *MongoBillingRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, expectedVersion int64, patch dbm.SubscriptionPatch) error {
	filter := bson.M{"_id": id.String(), "billing.version": expectedVersion}
	res, err := r.coll.UpdateOne(ctx, filter, billingUpdate(patch))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id.String()})
		if err != nil {
			return err
		}
		if n == 0 {
			return utils.ErrMerchantNotFound
		}
		return utils.ErrStaleSubscription
	}
	return nil
}

func (r *MongoBillingRepository) ForceUpdateSubscription(ctx context.Context, id uuid.UUID, patch dbm.SubscriptionPatch) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, billingUpdate(patch))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrMerchantNotFound
	}
	return nil
}

func (r *MongoBillingRepository) SetExternalCustomerID(ctx context.Context, id uuid.UUID, customerID string) (string, error) {
	filter := bson.M{
		"_id": id.String(),
		"$or": bson.A{
			bson.M{"billing.external_customer_id": bson.M{"$exists": false}},
			bson.M{"billing.external_customer_id": ""},
		},
	}
	_, err := r.coll.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"billing.external_customer_id": customerID, "updated_at": time.Now().Unix()},
		"$inc": bson.M{"billing.version": 1},
	})
	if err != nil {
		return "", err
	}

	merchant, err := r.FindMerchant(ctx, id)
	if err != nil {
		return "", err
	}
	if merchant == nil {
		return "", utils.ErrMerchantNotFound
	}
	return merchant.Subscription.ExternalCustomerID, nil
}

func (r *MongoBillingRepository) ListDueForReconciliation(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]dbm.Merchant, error) {
	// Legacy due dates (numbers, strings) cannot be range-compared server side,
	// so they are always returned and evaluated after conversion.
	filter := bson.M{
		"_id":            bson.M{"$gt": afterID.String()},
		"billing.status": bson.M{"$ne": string(dbm.SubStatusSuspended)},
		"$or": bson.A{
			bson.M{"billing.next_due_date": bson.M{"$type": "date", "$lt": now.UTC()}},
			bson.M{"billing.next_due_date": bson.M{"$type": bson.A{"string", "long", "int", "double"}}},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit))
	return r.findMany(ctx, filter, opts)
}

func (r *MongoBillingRepository) CountByStatus(ctx context.Context) (map[dbm.SubscriptionStatus]int64, error) {
	cur, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$billing.status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[dbm.SubscriptionStatus]int64{}
	for cur.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[dbm.SubscriptionStatus(row.Status)] = row.Count
	}
	return out, cur.Err()
}

func (r *MongoBillingRepository) ListDueBetween(ctx context.Context, start, end time.Time, limit int) ([]dbm.Merchant, error) {
	filter := bson.M{"billing.next_due_date": bson.M{"$gte": start.UTC(), "$lt": end.UTC()}}
	opts := options.Find().SetSort(bson.D{{Key: "billing.next_due_date", Value: 1}}).SetLimit(int64(limit))
	return r.findMany(ctx, filter, opts)
}

func (r *MongoBillingRepository) findMany(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]dbm.Merchant, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var merchants []dbm.Merchant
	for cur.Next(ctx) {
		var doc merchantDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		m, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		merchants = append(merchants, *m)
	}
	return merchants, cur.Err()
}

func billingUpdate(patch dbm.SubscriptionPatch) bson.M {
	set := bson.M{"updated_at": time.Now().Unix()}
	if patch.Status != nil {
		set["billing.status"] = string(*patch.Status)
	}
	if patch.NextDueDate != nil {
		// Always written as a native date; older shapes are replaced on first write.
		set["billing.next_due_date"] = patch.NextDueDate.UTC()
	}
	if patch.ExternalCustomerID != nil {
		set["billing.external_customer_id"] = *patch.ExternalCustomerID
	}
	if patch.PaymentMethod != nil {
		set["billing.payment_method"] = string(*patch.PaymentMethod)
	}
	if patch.IsRecurrent != nil {
		set["billing.is_recurrent"] = *patch.IsRecurrent
	}
	if patch.LastPaymentID != nil {
		set["billing.last_payment_id"] = *patch.LastPaymentID
	}
	if patch.IsVip != nil {
		set["billing.is_vip"] = *patch.IsVip
	}
	if patch.Meta != nil {
		set["billing.meta"] = string(patch.Meta)
	}
	return bson.M{"$set": set, "$inc": bson.M{"billing.version": 1}}
}

func (d merchantDoc) toModel() (*dbm.Merchant, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("merchant %q: %w", d.ID, err)
	}
	due, err := rawDueDate(d.Billing.NextDueDate)
	if err != nil {
		return nil, fmt.Errorf("merchant %s: %w", d.ID, err)
	}

	m := &dbm.Merchant{
		Name:          d.Name,
		Email:         d.Email,
		Document:      d.Document,
		Phone:         d.Phone,
		PostalCode:    d.PostalCode,
		AddressNumber: d.AddressNumber,
		Subscription: dbm.SubscriptionRecord{
			Status:             dbm.SubscriptionStatus(d.Billing.Status),
			NextDueDate:        due,
			ExternalCustomerID: d.Billing.ExternalCustomerID,
			PaymentMethod:      dbm.PaymentMethod(d.Billing.PaymentMethod),
			IsRecurrent:        d.Billing.IsRecurrent,
			LastPaymentID:      d.Billing.LastPaymentID,
			IsVip:              d.Billing.IsVip,
			Version:            d.Billing.Version,
		},
	}
	if d.Billing.Meta != "" {
		m.Subscription.Meta = datatypes.JSON(d.Billing.Meta)
	}
	if m.Subscription.Status == "" {
		m.Subscription.Status = dbm.SubStatusTrial
	}
	m.ID = id
	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt
	return m, nil
}

// rawDueDate tags the stored BSON value and converts it through utils.ParseDueDate.
func rawDueDate(raw bson.RawValue) (*time.Time, error) {
	switch raw.Type {
	case 0, bson.TypeNull, bson.TypeUndefined:
		return utils.ParseDueDate(utils.DueDateValue{Kind: utils.DueDateAbsent})
	case bson.TypeDateTime:
		return utils.ParseDueDate(utils.DueDateFromTime(raw.Time()))
	case bson.TypeInt64:
		return utils.ParseDueDate(utils.DueDateFromSeconds(raw.Int64()))
	case bson.TypeInt32:
		return utils.ParseDueDate(utils.DueDateFromSeconds(int64(raw.Int32())))
	case bson.TypeDouble:
		return utils.ParseDueDate(utils.DueDateFromSeconds(int64(raw.Double())))
	case bson.TypeString:
		return utils.ParseDueDate(utils.DueDateFromISO(raw.StringValue()))
	default:
		return nil, fmt.Errorf("%w: bson %s", utils.ErrUnknownDueDate, raw.Type)
	}
}

// EnsureIndexes creates the indexes the sweep and overview queries rely on.
func (r *MongoBillingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "billing.status", Value: 1}}},
		{Keys: bson.D{{Key: "billing.next_due_date", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("ensure merchant indexes: %w", err)
	}
	return nil
}
