package storage

import (
	"context"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/datatypes"
)

const articlesCollection = "articles"

// MongoRepository 文档库实现，字段名与 JSON 输出保持一致
type MongoRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type articleDoc struct {
	ID          string       `bson:"_id"`
	Title       string       `bson:"title"`
	Description string       `bson:"description"`
	Content     string       `bson:"content"`
	Author      string       `bson:"author"`
	SourceName  string       `bson:"source"`
	SourceURL   string       `bson:"sourceUrl"`
	URL         string       `bson:"url"`
	ImageURL    string       `bson:"imageUrl"`
	Category    string       `bson:"category"`
	PublishedAt time.Time    `bson:"publishedAt"`
	ViewCount   int64        `bson:"viewCount"`
	LikeCount   int64        `bson:"likes"`
	ShareCount  int64        `bson:"shares"`
	Trending    bool         `bson:"isTrending"`
	Breaking    bool         `bson:"isBreaking"`
	ExternalID  *string      `bson:"externalId,omitempty"`
	Meta        ProviderMeta `bson:"meta"`
	CreatedAt   time.Time    `bson:"createdAt"`
	UpdatedAt   time.Time    `bson:"updatedAt"`
}

func OpenMongo(ctx context.Context, uri, database string) (*MongoRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, classifyMongo("open", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &Error{Kind: ConnectionFailure, Op: "open", Err: err}
	}
	r := &MongoRepository{
		client: client,
		coll:   client.Database(database).Collection(articlesCollection),
	}
	if err := r.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return r, nil
}

func (r *MongoRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "externalId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "publishedAt", Value: -1}}},
		{Keys: bson.D{{Key: "isTrending", Value: 1}, {Key: "viewCount", Value: -1}}},
		{Keys: bson.D{{Key: "publishedAt", Value: 1}, {Key: "viewCount", Value: 1}}},
	})
	return classifyMongo("ensure_indexes", err)
}

func (r *MongoRepository) FindOne(ctx context.Context, f Filter) (*Article, error) {
	var doc articleDoc
	if err := r.coll.FindOne(ctx, mongoFilter(f)).Decode(&doc); err != nil {
		return nil, classifyMongo("find_one", err)
	}
	return doc.article(), nil
}

func (r *MongoRepository) Find(ctx context.Context, q Query) ([]Article, error) {
	opts := options.Find()
	if s := mongoSort(q.Sort); len(s) > 0 {
		opts.SetSort(s)
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := r.coll.Find(ctx, mongoFilter(q.Filter), opts)
	if err != nil {
		return nil, classifyMongo("find", err)
	}
	var docs []articleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classifyMongo("find", err)
	}
	out := make([]Article, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].article())
	}
	return out, nil
}

func (r *MongoRepository) Insert(ctx context.Context, a *Article) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	_, err := r.coll.InsertOne(ctx, docFromArticle(a))
	return classifyMongo("insert", err)
}

func (r *MongoRepository) UpdateContent(ctx context.Context, a *Article) error {
	a.UpdatedAt = time.Now().UTC()
	d := docFromArticle(a)
	set := bson.M{
		"title":       d.Title,
		"description": d.Description,
		"content":     d.Content,
		"author":      d.Author,
		"source":      d.SourceName,
		"sourceUrl":   d.SourceURL,
		"url":         d.URL,
		"imageUrl":    d.ImageURL,
		"category":    d.Category,
		"publishedAt": d.PublishedAt,
		"meta":        d.Meta,
		"updatedAt":   d.UpdatedAt,
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": a.ID}, bson.M{"$set": set})
	if err != nil {
		return classifyMongo("update_content", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) UpdateMany(ctx context.Context, f Filter, u Update) (int64, error) {
	set := bson.M{}
	if u.Trending != nil {
		set["isTrending"] = *u.Trending
	}
	if len(set) == 0 {
		return 0, nil
	}
	res, err := r.coll.UpdateMany(ctx, mongoFilter(f), bson.M{"$set": set})
	if err != nil {
		return 0, classifyMongo("update_many", err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepository) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	if f.IsEmpty() {
		return 0, &Error{Kind: ValidationFailure, Op: "delete_many", Err: ErrEmptyFilter}
	}
	res, err := r.coll.DeleteMany(ctx, mongoFilter(f))
	if err != nil {
		return 0, classifyMongo("delete_many", err)
	}
	return res.DeletedCount, nil
}

func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func mongoFilter(f Filter) bson.M {
	m := bson.M{}
	if f.ExternalID != "" {
		m["externalId"] = f.ExternalID
	}
	if f.Category != "" {
		m["category"] = string(f.Category)
	}
	published := bson.M{}
	if !f.PublishedAfter.IsZero() {
		published["$gte"] = f.PublishedAfter.UTC()
	}
	if !f.PublishedBefore.IsZero() {
		published["$lt"] = f.PublishedBefore.UTC()
	}
	if len(published) > 0 {
		m["publishedAt"] = published
	}
	if f.ViewsBelow != nil {
		m["viewCount"] = bson.M{"$lt": *f.ViewsBelow}
	}
	if f.Trending != nil {
		m["isTrending"] = *f.Trending
	}
	ids := bson.M{}
	if len(f.IDs) > 0 {
		ids["$in"] = f.IDs
	}
	if len(f.ExcludeIDs) > 0 {
		ids["$nin"] = f.ExcludeIDs
	}
	if len(ids) > 0 {
		m["_id"] = ids
	}
	return m
}

func mongoSort(sorts []Sort) bson.D {
	d := bson.D{}
	for _, s := range sorts {
		dir := 1
		if s.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: mongoField(s.Key), Value: dir})
	}
	return d
}

func mongoField(k SortKey) string {
	switch k {
	case ByViews:
		return "viewCount"
	case ByLikes:
		return "likes"
	default:
		return "publishedAt"
	}
}

func docFromArticle(a *Article) articleDoc {
	return articleDoc{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		Content:     a.Content,
		Author:      a.Author,
		SourceName:  a.SourceName,
		SourceURL:   a.SourceURL,
		URL:         a.URL,
		ImageURL:    a.ImageURL,
		Category:    string(a.Category),
		PublishedAt: a.PublishedAt.UTC(),
		ViewCount:   a.ViewCount,
		LikeCount:   a.LikeCount,
		ShareCount:  a.ShareCount,
		Trending:    a.Trending,
		Breaking:    a.Breaking,
		ExternalID:  a.ExternalID,
		Meta:        a.Meta.Data(),
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}
}

func (d *articleDoc) article() *Article {
	return &Article{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Content:     d.Content,
		Author:      d.Author,
		SourceName:  d.SourceName,
		SourceURL:   d.SourceURL,
		URL:         d.URL,
		ImageURL:    d.ImageURL,
		Category:    collector.Category(d.Category),
		PublishedAt: d.PublishedAt.UTC(),
		ViewCount:   d.ViewCount,
		LikeCount:   d.LikeCount,
		ShareCount:  d.ShareCount,
		Trending:    d.Trending,
		Breaking:    d.Breaking,
		ExternalID:  d.ExternalID,
		Meta:        datatypes.NewJSONType(d.Meta),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}
