package selection

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/samber/lo"

	"hintwheel/internal/constants"
	"hintwheel/internal/models"
	"hintwheel/internal/store"
	"hintwheel/internal/util"
)

// ErrNoEligibleHints reports that the exclusion set covers the whole
// hint table. It is a legitimate empty-result state, not a storage
// failure, and callers must branch on it.
var ErrNoEligibleHints = errors.New("no eligible hints")

// Engine picks one eligible hint uniformly at random for a user. It is
// a pure query: recording the pick is the caller's job.
type Engine struct {
	Hints    *store.HintStore
	History  *store.HistoryStore
	Lookback time.Duration
}

func NewEngine(hints *store.HintStore, history *store.HistoryStore, lookback time.Duration) *Engine {
	return &Engine{Hints: hints, History: history, Lookback: lookback}
}

// PickRandom builds the exclusion set for userID and selects among the
// remaining hints. Excluded are the user's own contributions (forever),
// the user's picks inside the rolling lookback ending at now, and
// clientExcludeID when positive. The client id only smooths UX against
// an immediate repeat; the history-derived set is authoritative.
func (e *Engine) PickRandom(ctx context.Context, userID string, clientExcludeID int64, now int64) (*models.Hint, error) {
	excluded, err := e.History.ExcludedHintIDs(ctx, userID, now-e.Lookback.Milliseconds())
	if err != nil {
		return nil, err
	}
	if clientExcludeID > 0 {
		excluded = append(excluded, clientExcludeID)
	}
	excluded = lo.Uniq(excluded)

	eligible, err := e.Hints.ListExcluding(ctx, excluded)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleHints
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(eligible))))
	if err != nil {
		reqID, _ := ctx.Value(constants.RequestIDKey).(string)
		if reqID != "" {
			util.LogWarn("[request_id=%v] Error generating random number: %v, using first eligible hint", reqID, err)
		} else {
			util.LogWarn("Error generating random number: %v, using first eligible hint", err)
		}
		return &eligible[0], nil
	}
	return &eligible[n.Int64()], nil
}
