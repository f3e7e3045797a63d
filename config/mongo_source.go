package config

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoOptions MongoDB 配置源选项
type MongoOptions struct {
	URI        string
	Username   string
	Password   string
	Database   string
	Collection string        // 集合名（默认 config）
	Prefix     string        // 只读取 _id 以此开头的文档（可选）
	Timeout    time.Duration // 连接和查询超时时间（默认 10 秒）
}

// mongoFinder MongoSource 用到的查询，*mongo.Collection 满足此接口
type mongoFinder interface {
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
}

// mongoEntry 集合中的一个文档：{_id: "/app/beans", value: "..."}
type mongoEntry struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// MongoSource MongoDB 配置源，文档的 _id 是配置路径，value 是 JSON、YAML 或普通字符串
type MongoSource struct {
	Options MongoOptions

	// Collection 不为空时直接使用，不再创建客户端
	Collection mongoFinder
}

func (s *MongoSource) Name() string {
	return fmt.Sprintf("Mongo(%s.%s)", s.Options.Database, s.collection())
}

func (s *MongoSource) collection() string {
	if s.Options.Collection != "" {
		return s.Options.Collection
	}
	return "config"
}

func (s *MongoSource) Load() (map[string]any, error) {
	timeout := s.Options.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	coll := s.Collection
	if coll == nil {
		if s.Options.URI == "" || s.Options.Database == "" {
			return nil, errors.New("mongo source requires uri and database")
		}

		clientOpts := options.Client().ApplyURI(s.Options.URI).SetConnectTimeout(timeout)
		if s.Options.Username != "" || s.Options.Password != "" {
			clientOpts.SetAuth(options.Credential{
				Username: s.Options.Username,
				Password: s.Options.Password,
			})
		}

		client, err := mongo.Connect(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to create mongo client: %w", err)
		}
		defer client.Disconnect(context.Background())
		coll = client.Database(s.Options.Database).Collection(s.collection())
	}

	filter := bson.M{}
	if s.Options.Prefix != "" {
		filter["_id"] = bson.M{"$regex": "^" + regexp.QuoteMeta(s.Options.Prefix)}
	}

	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query mongo collection %s: %w", s.collection(), err)
	}

	var entries []mongoEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode mongo documents: %w", err)
	}

	result := make(map[string]any)
	for _, entry := range entries {
		if path := keyPath(entry.Key, s.Options.Prefix); path != "" {
			setNestedValue(result, path, decodeDocument([]byte(entry.Value)))
		}
	}
	return result, nil
}
