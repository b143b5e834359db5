package karma

import (
	"context"
	"math"

	"github.com/peteonrails/vote-fu/internal/domain"
)

// Level returns the label of the highest configured threshold not exceeding
// the voter's karma. With no levels configured, or karma below every
// threshold, it returns the unknown sentinel.
func (e *Engine) Level(ctx context.Context, voter domain.Voter) (string, error) {
	karma, err := e.Karma(ctx, voter, false)
	if err != nil {
		return "", err
	}
	if idx := e.levelIndex(karma); idx >= 0 {
		return e.levels[idx].Label, nil
	}
	return domain.LevelUnknown, nil
}

// Progress reports where the voter stands between their current level and the
// next one. At the top level the next level is nil, progress is 100.0 and no
// further karma is needed.
func (e *Engine) Progress(ctx context.Context, voter domain.Voter) (domain.KarmaProgress, error) {
	karma, err := e.Karma(ctx, voter, false)
	if err != nil {
		return domain.KarmaProgress{}, err
	}

	if len(e.levels) == 0 {
		return domain.KarmaProgress{CurrentLevel: domain.LevelUnknown}, nil
	}

	idx := e.levelIndex(karma)

	current := domain.LevelUnknown
	var currentThreshold int64
	if idx >= 0 {
		current = e.levels[idx].Label
		currentThreshold = e.levels[idx].Threshold
	}

	if idx == len(e.levels)-1 {
		return domain.KarmaProgress{
			CurrentLevel:    current,
			ProgressPercent: 100.0,
		}, nil
	}

	next := e.levels[idx+1]
	span := float64(next.Threshold - currentThreshold)
	percent := float64(karma-currentThreshold) / span * 100
	percent = math.Round(math.Min(math.Max(percent, 0), 100)*10) / 10

	return domain.KarmaProgress{
		CurrentLevel:    current,
		NextLevel:       &next.Label,
		ProgressPercent: percent,
		KarmaNeeded:     next.Threshold - karma,
	}, nil
}

// HasLevel reports whether the voter's karma reaches the threshold of the
// named level. Unknown labels yield false.
func (e *Engine) HasLevel(ctx context.Context, voter domain.Voter, label string) (bool, error) {
	karma, err := e.Karma(ctx, voter, false)
	if err != nil {
		return false, err
	}
	for _, level := range e.levels {
		if level.Label == label {
			return karma >= level.Threshold, nil
		}
	}
	return false, nil
}

// levelIndex returns the index of the highest level whose threshold does not
// exceed karma, or -1 when karma falls below every threshold.
func (e *Engine) levelIndex(karma int64) int {
	idx := -1
	for i, level := range e.levels {
		if level.Threshold > karma {
			break
		}
		idx = i
	}
	return idx
}
