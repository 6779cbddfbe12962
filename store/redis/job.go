package redis

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// insertScript writes the job hash and indexes it only if the hash does
// not exist yet.
//
// KEYS[1] job hash, KEYS[2] state set.
// ARGV[1] job id, ARGV[2] score, ARGV[3..] field/value pairs.
var insertScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
return 1
`)

// casScript applies a patch while the hash's state equals the expected
// one, moving the id between state sets with its score unchanged.
//
// KEYS[1] job hash, KEYS[2] expected state set, KEYS[3] new state set.
// ARGV[1] expected state, ARGV[2] new state, ARGV[3] job id,
// ARGV[4] n, then n field/value pairs, then the fields to delete.
var casScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'state')
if not cur or cur ~= ARGV[1] then
	return 0
end
local n = tonumber(ARGV[4])
local set = {}
for i = 5, 4 + 2 * n do
	set[#set + 1] = ARGV[i]
end
redis.call('HSET', KEYS[1], unpack(set))
local del = {}
for i = 5 + 2 * n, #ARGV do
	del[#del + 1] = ARGV[i]
end
if #del > 0 then
	redis.call('HDEL', KEYS[1], unpack(del))
end
if ARGV[1] ~= ARGV[2] then
	local score = redis.call('ZSCORE', KEYS[2], ARGV[3])
	redis.call('ZREM', KEYS[2], ARGV[3])
	redis.call('ZADD', KEYS[3], score, ARGV[3])
end
return 1
`)

// InsertJob stores the job as a Hash and adds it to its state's Sorted Set.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	args := []any{jID, score(j.CreatedAt)}
	args = append(args, jobToArgs(j)...)

	n, err := insertScript.Run(ctx, s.client, []string{jobKey(jID), stateKey(j.State)}, args...).Int()
	if err != nil {
		return fmt.Errorf("queuectl/redis: insert job: %w", err)
	}
	if n == 0 {
		return queuectl.ErrJobAlreadyExists
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, jobKey(jobID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("queuectl/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, queuectl.ErrJobNotFound
	}
	return mapToJob(vals)
}

// QueryJobs walks the state's Sorted Set in batches and loads each hash.
// Jobs that leave the state between the range read and the hash read are
// skipped. Offset and limit count matching jobs only.
func (s *Store) QueryJobs(ctx context.Context, opts job.QueryOpts) iter.Seq2[*job.Job, error] {
	return job.SinglePass(func(yield func(*job.Job, error) bool) {
		var (
			key      = stateKey(opts.State)
			skip     = opts.Offset
			returned int
			start    int64
		)
		for {
			members, err := s.rangeIDs(ctx, key, opts.Order, start, int64(s.batchSize))
			if err != nil {
				yield(nil, fmt.Errorf("queuectl/redis: query jobs: %w", err))
				return
			}
			if len(members) == 0 {
				return
			}
			start += int64(len(members))

			jobs, err := s.loadJobs(ctx, members)
			if err != nil {
				yield(nil, fmt.Errorf("queuectl/redis: query jobs: %w", err))
				return
			}
			for _, j := range jobs {
				if j.State != opts.State {
					continue
				}
				if opts.EligibleAt != nil && j.NextRunAt != nil && j.NextRunAt.After(*opts.EligibleAt) {
					continue
				}
				if skip > 0 {
					skip--
					continue
				}
				if !yield(j, nil) {
					return
				}
				returned++
				if opts.Limit > 0 && returned >= opts.Limit {
					return
				}
			}
			if len(members) < s.batchSize {
				return
			}
		}
	})
}

func (s *Store) rangeIDs(ctx context.Context, key string, order job.Order, start, count int64) ([]string, error) {
	stop := start + count - 1
	if order == job.OrderDesc {
		return s.client.ZRevRange(ctx, key, start, stop).Result()
	}
	return s.client.ZRange(ctx, key, start, stop).Result()
}

// loadJobs fetches the hashes for ids in one pipeline, preserving order.
// Missing hashes are dropped.
func (s *Store) loadJobs(ctx context.Context, ids []string) ([]*job.Job, error) {
	pipe := s.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, jID := range ids {
		cmds[i] = pipe.HGetAll(ctx, jobKey(jID))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, err
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			continue
		}
		j, err := mapToJob(vals)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// ConditionalUpdate applies p only while the hash is still in state
// expected.
func (s *Store) ConditionalUpdate(ctx context.Context, jobID id.JobID, expected job.State, p job.Patch) (bool, error) {
	jID := jobID.String()
	set, del := patchFields(p)

	args := make([]any, 0, 4+len(set)+len(del))
	args = append(args, string(expected), string(p.State), jID, len(set)/2)
	args = append(args, set...)
	args = append(args, del...)

	keys := []string{jobKey(jID), stateKey(expected), stateKey(p.State)}
	n, err := casScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return false, fmt.Errorf("queuectl/redis: conditional update: %w", err)
	}
	return n == 1, nil
}

// CountByState returns the cardinality of every state set.
func (s *Store) CountByState(ctx context.Context) (map[job.State]int64, error) {
	pipe := s.client.Pipeline()
	cmds := make(map[job.State]*goredis.IntCmd, len(job.States))
	for _, st := range job.States {
		cmds[st] = pipe.ZCard(ctx, stateKey(st))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queuectl/redis: count jobs: %w", err)
	}

	counts := make(map[job.State]int64)
	for st, cmd := range cmds {
		if n := cmd.Val(); n > 0 {
			counts[st] = n
		}
	}
	return counts, nil
}

// ── helpers ──

// score orders a state set by creation time. Microseconds keep the value
// exact in a float64.
func score(t time.Time) float64 { return float64(t.UnixMicro()) }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(field, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("queuectl/redis: parse %s: %w", field, err)
	}
	return t.UTC(), nil
}

// jobToArgs flattens a job into HSET field/value pairs. Nil optional
// fields are left out of the hash.
func jobToArgs(j *job.Job) []any {
	args := []any{
		"id", j.ID.String(),
		"command", j.Command,
		"state", string(j.State),
		"attempts", strconv.Itoa(j.Attempts),
		"max_retries", strconv.Itoa(j.MaxRetries),
		"created_at", formatTime(j.CreatedAt),
		"updated_at", formatTime(j.UpdatedAt),
	}
	if j.NextRunAt != nil {
		args = append(args, "next_run_at", formatTime(*j.NextRunAt))
	}
	if !j.WorkerID.IsNil() {
		args = append(args, "worker_id", j.WorkerID.String())
	}
	if j.LastExitCode != nil {
		args = append(args, "last_exit_code", strconv.Itoa(*j.LastExitCode))
	}
	if j.LastError != nil {
		args = append(args, "last_error", *j.LastError)
	}
	if j.Output != nil {
		args = append(args, "output", *j.Output)
	}
	return args
}

// patchFields splits a patch into fields to set and fields to delete.
func patchFields(p job.Patch) (set, del []any) {
	set = []any{
		"state", string(p.State),
		"updated_at", formatTime(p.UpdatedAt),
	}
	if p.WorkerID.IsNil() {
		del = append(del, "worker_id")
	} else {
		set = append(set, "worker_id", p.WorkerID.String())
	}
	if p.NextRunAt == nil {
		del = append(del, "next_run_at")
	} else {
		set = append(set, "next_run_at", formatTime(*p.NextRunAt))
	}
	if p.Attempts != nil {
		set = append(set, "attempts", strconv.Itoa(*p.Attempts))
	}
	if p.LastExitCode != nil {
		set = append(set, "last_exit_code", strconv.Itoa(*p.LastExitCode))
	}
	if p.LastError != nil {
		set = append(set, "last_error", *p.LastError)
	}
	if p.Output != nil {
		set = append(set, "output", *p.Output)
	}
	return set, del
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("queuectl/redis: parse job id: %w", err)
	}
	attempts, err := strconv.Atoi(m["attempts"])
	if err != nil {
		return nil, fmt.Errorf("queuectl/redis: parse attempts: %w", err)
	}
	maxRetries, err := strconv.Atoi(m["max_retries"])
	if err != nil {
		return nil, fmt.Errorf("queuectl/redis: parse max_retries: %w", err)
	}
	createdAt, err := parseTime("created_at", m["created_at"])
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime("updated_at", m["updated_at"])
	if err != nil {
		return nil, err
	}

	j := &job.Job{
		ID:         jID,
		Command:    m["command"],
		State:      job.State(m["state"]),
		Attempts:   attempts,
		MaxRetries: maxRetries,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}

	if v, ok := m["next_run_at"]; ok {
		t, err := parseTime("next_run_at", v)
		if err != nil {
			return nil, err
		}
		j.NextRunAt = &t
	}
	if v, ok := m["worker_id"]; ok {
		wID, err := id.ParseWorkerID(v)
		if err != nil {
			return nil, fmt.Errorf("queuectl/redis: parse worker id: %w", err)
		}
		j.WorkerID = wID
	}
	if v, ok := m["last_exit_code"]; ok {
		code, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("queuectl/redis: parse last_exit_code: %w", err)
		}
		j.LastExitCode = &code
	}
	if v, ok := m["last_error"]; ok {
		j.LastError = &v
	}
	if v, ok := m["output"]; ok {
		j.Output = &v
	}
	return j, nil
}
