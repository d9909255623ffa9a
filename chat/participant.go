package chat

import (
	"context"
	"fmt"

	"github.com/pserra/chatcache/record"
	"github.com/pserra/chatcache/remote"
)

// FetchParticipantsCompletion receives participant results, cache-first.
type FetchParticipantsCompletion func(ps []record.Participant, cached bool, err error)

// FetchParticipants loads participant profiles for the given user IDs.
// Cached profiles are delivered immediately when present (stale data is
// acceptable); the remote result follows and refreshes the cache.
func (e *Extension) FetchParticipants(ctx context.Context, userIDs []string, completion FetchParticipantsCompletion) error {
	cached, err := e.cache.FetchParticipants(userIDs)
	if err != nil {
		return fmt.Errorf("cached participants: %w", err)
	}
	if len(cached) > 0 {
		completion(cached, true, nil)
	}

	res, err := e.remote.Fetch(ctx, remote.Query{
		RecordType: record.TypeParticipant,
		IDs:        userIDs,
	})
	if err != nil {
		completion(nil, false, err)
		return fmt.Errorf("fetch participants: %w", err)
	}

	ps := make([]record.Participant, 0, len(res.Records))
	for _, rec := range res.Records {
		p, err := record.ParticipantFromRecord(rec)
		if err != nil {
			completion(nil, false, err)
			return err
		}
		ps = append(ps, *p)
	}
	if err := e.cache.SetParticipants(ps); err != nil {
		completion(nil, false, err)
		return err
	}
	completion(ps, false, nil)
	return nil
}
