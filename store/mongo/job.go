package mongo

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

type jobModel struct {
	ID           string     `bson:"_id"`
	Command      string     `bson:"command"`
	State        string     `bson:"state"`
	Attempts     int        `bson:"attempts"`
	MaxRetries   int        `bson:"max_retries"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
	NextRunAt    *time.Time `bson:"next_run_at,omitempty"`
	WorkerID     string     `bson:"worker_id,omitempty"`
	LastExitCode *int       `bson:"last_exit_code,omitempty"`
	LastError    *string    `bson:"last_error,omitempty"`
	Output       *string    `bson:"output,omitempty"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
		ID:           j.ID.String(),
		Command:      j.Command,
		State:        string(j.State),
		Attempts:     j.Attempts,
		MaxRetries:   j.MaxRetries,
		CreatedAt:    j.CreatedAt.UTC(),
		UpdatedAt:    j.UpdatedAt.UTC(),
		NextRunAt:    utc(j.NextRunAt),
		WorkerID:     j.WorkerID.String(),
		LastExitCode: j.LastExitCode,
		LastError:    j.LastError,
		Output:       j.Output,
	}
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	jobID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	j := &job.Job{
		ID:           jobID,
		Command:      m.Command,
		State:        job.State(m.State),
		Attempts:     m.Attempts,
		MaxRetries:   m.MaxRetries,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
		NextRunAt:    utc(m.NextRunAt),
		LastExitCode: m.LastExitCode,
		LastError:    m.LastError,
		Output:       m.Output,
	}
	if m.WorkerID != "" {
		wID, err := id.ParseWorkerID(m.WorkerID)
		if err != nil {
			return nil, fmt.Errorf("parse worker id: %w", err)
		}
		j.WorkerID = wID
	}
	return j, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// InsertJob persists a new job.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) error {
	_, err := s.db.Collection(colJobs).InsertOne(ctx, toJobModel(j))
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return queuectl.ErrJobAlreadyExists
		}
		return fmt.Errorf("queuectl/mongo: insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var m jobModel
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, queuectl.ErrJobNotFound
		}
		return nil, fmt.Errorf("queuectl/mongo: get job: %w", err)
	}
	j, err := fromJobModel(&m)
	if err != nil {
		return nil, fmt.Errorf("queuectl/mongo: get job: %w", err)
	}
	return j, nil
}

// QueryJobs streams jobs matching opts from a cursor that is closed when
// the range ends.
func (s *Store) QueryJobs(ctx context.Context, opts job.QueryOpts) iter.Seq2[*job.Job, error] {
	filter := bson.M{"state": string(opts.State)}
	if opts.EligibleAt != nil {
		// A null match also covers a missing field.
		filter["$or"] = bson.A{
			bson.M{"next_run_at": nil},
			bson.M{"next_run_at": bson.M{"$lte": opts.EligibleAt.UTC()}},
		}
	}

	dir := 1
	if opts.Order == job.OrderDesc {
		dir = -1
	}
	findOpts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: dir},
		{Key: "_id", Value: dir},
	})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	return job.SinglePass(func(yield func(*job.Job, error) bool) {
		cursor, err := s.db.Collection(colJobs).Find(ctx, filter, findOpts)
		if err != nil {
			yield(nil, fmt.Errorf("queuectl/mongo: query jobs: %w", err))
			return
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var m jobModel
			if err := cursor.Decode(&m); err != nil {
				yield(nil, fmt.Errorf("queuectl/mongo: decode job: %w", err))
				return
			}
			j, err := fromJobModel(&m)
			if err != nil {
				yield(nil, fmt.Errorf("queuectl/mongo: decode job: %w", err))
				return
			}
			if !yield(j, nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(nil, fmt.Errorf("queuectl/mongo: query jobs: %w", err))
		}
	})
}

// ConditionalUpdate applies p only while the document is still in state
// expected.
func (s *Store) ConditionalUpdate(ctx context.Context, jobID id.JobID, expected job.State, p job.Patch) (bool, error) {
	filter := bson.M{"_id": jobID.String(), "state": string(expected)}

	res, err := s.db.Collection(colJobs).UpdateOne(ctx, filter, patchUpdate(p))
	if err != nil {
		return false, fmt.Errorf("queuectl/mongo: conditional update: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// patchUpdate builds the update document. Cleared fields are removed
// rather than set to null so decoding yields nil pointers.
func patchUpdate(p job.Patch) bson.M {
	set := bson.M{
		"state":      string(p.State),
		"updated_at": p.UpdatedAt.UTC(),
	}
	unset := bson.M{}

	if p.WorkerID.IsNil() {
		unset["worker_id"] = ""
	} else {
		set["worker_id"] = p.WorkerID.String()
	}
	if p.NextRunAt == nil {
		unset["next_run_at"] = ""
	} else {
		set["next_run_at"] = p.NextRunAt.UTC()
	}
	if p.Attempts != nil {
		set["attempts"] = *p.Attempts
	}
	if p.LastExitCode != nil {
		set["last_exit_code"] = *p.LastExitCode
	}
	if p.LastError != nil {
		set["last_error"] = *p.LastError
	}
	if p.Output != nil {
		set["output"] = *p.Output
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

// CountByState groups jobs by state.
func (s *Store) CountByState(ctx context.Context) (map[job.State]int64, error) {
	pipeline := mongod.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$state"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := s.db.Collection(colJobs).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("queuectl/mongo: count jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		State string `bson:"_id"`
		N     int64  `bson:"n"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("queuectl/mongo: count jobs decode: %w", err)
	}

	counts := make(map[job.State]int64, len(rows))
	for _, r := range rows {
		counts[job.State(r.State)] = r.N
	}
	return counts, nil
}
