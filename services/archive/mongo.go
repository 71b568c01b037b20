// Package archive stores triggered signals in MongoDB for long term
// retention. Archival is optional: without a configured URI every
// operation is a no-op.
package archive

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quantpulse/logger"
	"quantpulse/models"
)

// MongoDB collection names
const (
	MongoDBName           = "quantpulse"
	MongoSignalCollection = "signal_archive"
)

const connectTimeout = 10 * time.Second

// signalDocument is the archived form of a signal
type signalDocument struct {
	ID               string     `bson:"_id"`
	Symbol           string     `bson:"symbol"`
	SignalType       string     `bson:"signal_type"`
	Timestamp        time.Time  `bson:"timestamp"`
	Confidence       float64    `bson:"confidence"`
	Explanation      string     `bson:"explanation"`
	IndicatorsPassed []string   `bson:"indicators_passed"`
	Notified         bool       `bson:"notified"`
	NotifiedAt       *time.Time `bson:"notified_at,omitempty"`
	ArchivedAt       time.Time  `bson:"archived_at"`
}

// MongoArchive persists signals to a MongoDB collection
type MongoArchive struct {
	mu        sync.RWMutex
	client    *mongo.Client
	database  *mongo.Database
	connected bool
}

// NewMongoArchive connects to MongoDB. An empty URI returns a disabled
// archive rather than an error so deployments without Mongo still work.
func NewMongoArchive(ctx context.Context, uri string) (*MongoArchive, error) {
	if uri == "" {
		logger.Get().Infow("MONGODB_URI not set, signal archival disabled")
		return &MongoArchive{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	logger.Get().Infow("connected to MongoDB signal archive", "database", MongoDBName)
	return &MongoArchive{
		client:    client,
		database:  client.Database(MongoDBName),
		connected: true,
	}, nil
}

// Enabled reports whether the archive has a live connection
func (a *MongoArchive) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}

// ArchiveSignal upserts one signal document
func (a *MongoArchive) ArchiveSignal(ctx context.Context, signal models.SignalResult) error {
	if !a.Enabled() {
		return nil
	}

	doc := signalDocument{
		ID:               signal.ID,
		Symbol:           signal.Symbol,
		SignalType:       signal.SignalType,
		Timestamp:        signal.Timestamp,
		Confidence:       signal.Confidence,
		Explanation:      signal.Explanation,
		IndicatorsPassed: signal.GetIndicatorsPassed(),
		Notified:         signal.Notified,
		NotifiedAt:       signal.NotifiedAt,
		ArchivedAt:       time.Now().UTC(),
	}

	collection := a.database.Collection(MongoSignalCollection)
	_, err := collection.ReplaceOne(ctx,
		bson.M{"_id": doc.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

// ArchivedSignals returns archived signals for a symbol, newest first
func (a *MongoArchive) ArchivedSignals(ctx context.Context, symbol string, limit int64) ([]models.SignalResult, error) {
	if !a.Enabled() {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	collection := a.database.Collection(MongoSignalCollection)
	cursor, err := collection.Find(ctx,
		bson.M{"symbol": symbol},
		options.Find().SetSort(bson.M{"timestamp": -1}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var signals []models.SignalResult
	for cursor.Next(ctx) {
		var doc signalDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		signal := models.SignalResult{
			ID:          doc.ID,
			Symbol:      doc.Symbol,
			SignalType:  doc.SignalType,
			Timestamp:   doc.Timestamp,
			Confidence:  doc.Confidence,
			Explanation: doc.Explanation,
			Notified:    doc.Notified,
			NotifiedAt:  doc.NotifiedAt,
		}
		if err := signal.SetIndicatorsPassed(doc.IndicatorsPassed); err != nil {
			return nil, err
		}
		signals = append(signals, signal)
	}
	return signals, cursor.Err()
}

// Close disconnects from MongoDB
func (a *MongoArchive) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil
	}
	a.connected = false
	return a.client.Disconnect(ctx)
}
