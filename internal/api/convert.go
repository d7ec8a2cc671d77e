package api

import (
	"strings"
	"time"

	"github.com/rickgao/depthbook/internal/model"
)

// ToSnapshot converts a depth response to a model.Snapshot.
// Every level must parse; a single bad level rejects the whole snapshot.
func ToSnapshot(symbol string, resp *DepthSnapshotResponse, fetchedAt time.Time) (model.Snapshot, error) {
	bids, err := model.ParseLevels("bids", resp.Bids)
	if err != nil {
		return model.Snapshot{}, err
	}
	asks, err := model.ParseLevels("asks", resp.Asks)
	if err != nil {
		return model.Snapshot{}, err
	}

	return model.Snapshot{
		Symbol:       strings.ToUpper(symbol),
		LastUpdateID: resp.LastUpdateID,
		Bids:         bids,
		Asks:         asks,
		FetchedAt:    fetchedAt,
	}, nil
}
