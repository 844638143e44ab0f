package scheduler

import (
	"encoding/json"
	"os"

	"github.com/suwandre/spreadscan/internal/models"
)

// saveActivePairs mirrors the in-memory active set to disk so an operator
// can inspect it and a restart picks up where the last full scan left off.
func (s *Scheduler) saveActivePairs() {
	active := s.ActivePairs()

	data, err := json.MarshalIndent(active, "", "  ")
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode active spread pairs")
		return
	}
	if err := os.WriteFile(s.cfg.SpreadPairsFile, data, 0o644); err != nil {
		s.logger.Warn().Err(err).Str("file", s.cfg.SpreadPairsFile).
			Msg("failed to save active spread pairs")
		return
	}
	s.logger.Debug().Int("pairs", len(active)).Str("file", s.cfg.SpreadPairsFile).
		Msg("active spread pairs saved")
}

// loadActivePairs restores the active set from the mirror file. Missing or
// malformed files just leave the set empty; the first full scan rebuilds it.
func (s *Scheduler) loadActivePairs() {
	data, err := os.ReadFile(s.cfg.SpreadPairsFile)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("file", s.cfg.SpreadPairsFile).
				Msg("failed to read active spread pairs file")
		}
		return
	}

	var active []models.ImpactResult
	if err := json.Unmarshal(data, &active); err != nil {
		s.logger.Warn().Err(err).Str("file", s.cfg.SpreadPairsFile).
			Msg("ignoring malformed active spread pairs file")
		return
	}

	s.setActive(active)
	for _, res := range active {
		s.storeResult(res)
	}
	s.logger.Info().Int("pairs", len(active)).Msg("restored active spread pairs")
}
