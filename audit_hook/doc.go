// Package audithook is a queuectl extension that turns lifecycle events
// into an append-only audit trail.
//
// Every job and worker hook produces an [AuditEvent] handed to a
// [Recorder]. Severity follows the outcome: info for normal progress,
// warning for scheduled retries and critical for jobs moved to the dead
// letter queue.
//
// [JSONRecorder] writes one JSON object per line, which is what the
// queuectl CLI uses for its --audit-log flag:
//
//	f, _ := os.OpenFile("audit.jsonl", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
//	eng, _ := engine.New(s, engine.WithExtension(audithook.New(audithook.NewJSONRecorder(f))))
//
// Restrict the trail to a subset of actions with [WithActions]:
//
//	audithook.New(rec, audithook.WithActions(audithook.ActionJobDead, audithook.ActionJobRequeued))
package audithook
