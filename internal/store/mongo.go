package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	internalmeetings "meetsync/internal/meetings"
)

// MongoStore persists meetings and participants in MongoDB. Optimistic
// concurrency is a conditional replace filtered on (_id, version); a replace
// that matches nothing is either a missing document or a stale version.
type MongoStore struct {
	meetings     *mongo.Collection
	participants *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	s := &MongoStore{
		meetings:     db.Collection("meetings"),
		participants: db.Collection("meeting_participants"),
	}
	s.ensureIndexes()
	return s
}

func (s *MongoStore) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// One participant row per (meeting, user).
	s.participants.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "meeting_id", Value: 1},
			{Key: "user_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})

	s.participants.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
		},
	})

	// Start-time range scans for feeds and reminders.
	s.meetings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "start_time", Value: 1},
		},
	})
}

func (s *MongoStore) CreateMeeting(
	ctx context.Context,
	meeting *internalmeetings.Meeting,
	participants []*internalmeetings.Participant,
) error {
	if _, err := s.meetings.InsertOne(ctx, meeting); err != nil {
		return err
	}

	docs := make([]interface{}, 0, len(participants))
	for _, p := range participants {
		docs = append(docs, p)
	}

	_, err := s.participants.InsertMany(ctx, docs)
	return err
}

func (s *MongoStore) GetMeeting(ctx context.Context, id uuid.UUID) (*internalmeetings.Meeting, error) {
	var meeting internalmeetings.Meeting
	err := s.meetings.FindOne(ctx, bson.M{"_id": id}).Decode(&meeting)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, internalmeetings.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &meeting, nil
}

func (s *MongoStore) GetParticipant(
	ctx context.Context,
	meetingID, userID uuid.UUID,
) (*internalmeetings.Participant, error) {
	var participant internalmeetings.Participant
	err := s.participants.FindOne(ctx, bson.M{"meeting_id": meetingID, "user_id": userID}).Decode(&participant)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, internalmeetings.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &participant, nil
}

func (s *MongoStore) ListParticipants(
	ctx context.Context,
	meetingID uuid.UUID,
) ([]*internalmeetings.Participant, error) {
	opts := options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}})
	cursor, err := s.participants.Find(ctx, bson.M{"meeting_id": meetingID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var participants []*internalmeetings.Participant
	if err := cursor.All(ctx, &participants); err != nil {
		return nil, err
	}

	return participants, nil
}

func (s *MongoStore) UpdateMeeting(
	ctx context.Context,
	id uuid.UUID,
	expectedVersion int64,
	mutate MeetingMutation,
) (*internalmeetings.Meeting, error) {
	meeting, err := s.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}

	if meeting.Version != expectedVersion {
		return nil, internalmeetings.ErrVersionConflict
	}

	mutate(meeting)
	meeting.Version = expectedVersion + 1
	meeting.UpdatedAt = time.Now().UTC()

	res, err := s.meetings.ReplaceOne(ctx, bson.M{"_id": id, "version": expectedVersion}, meeting)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		// Raced between the read and the replace.
		return nil, internalmeetings.ErrVersionConflict
	}

	return meeting, nil
}

func (s *MongoStore) UpdateParticipant(
	ctx context.Context,
	meetingID, userID uuid.UUID,
	expectedVersion int64,
	mutate ParticipantMutation,
) (*internalmeetings.Participant, error) {
	participant, err := s.GetParticipant(ctx, meetingID, userID)
	if err != nil {
		return nil, err
	}

	if participant.Version != expectedVersion {
		return nil, internalmeetings.ErrVersionConflict
	}

	mutate(participant)
	participant.Version = expectedVersion + 1

	filter := bson.M{"meeting_id": meetingID, "user_id": userID, "version": expectedVersion}
	res, err := s.participants.ReplaceOne(ctx, filter, participant)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, internalmeetings.ErrVersionConflict
	}

	return participant, nil
}

func (s *MongoStore) ListMeetingsForUser(
	ctx context.Context,
	userID uuid.UUID,
) ([]*internalmeetings.Meeting, error) {
	cursor, err := s.participants.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []internalmeetings.Participant
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.MeetingID)
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	meetingCursor, err := s.meetings.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer meetingCursor.Close(ctx)

	var result []*internalmeetings.Meeting
	if err := meetingCursor.All(ctx, &result); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *MongoStore) ListStartingBetween(
	ctx context.Context,
	from, to time.Time,
) ([]*internalmeetings.Meeting, error) {
	filter := bson.M{"start_time": bson.M{"$gte": from, "$lt": to}}
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := s.meetings.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var result []*internalmeetings.Meeting
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}

	return result, nil
}
