package core

import "github.com/stagepipe/omcbridge/internal/omc"

// ConversionStats tallies a produced entity sequence three ways. Map keys
// are the values observed in the output, so the tallies reflect what was
// actually emitted (post-default, post-omission), not the raw input.
type ConversionStats struct {
	ByCategory     map[omc.Category]int `json:"byCategory"`
	ByState        map[omc.State]int    `json:"byState"`
	ByPipelineStep map[string]int       `json:"byPipelineStep"`
}

// TallyStats reduces the produced sequence to its three tallies. Every
// entity counts toward its state (states always exist, defaulted or not);
// entities without a category or pipeline step are excluded from those two
// tallies.
func TallyStats(entities []omc.Entity) ConversionStats {
	stats := ConversionStats{
		ByCategory:     make(map[omc.Category]int),
		ByState:        make(map[omc.State]int),
		ByPipelineStep: make(map[string]int),
	}

	for _, entity := range entities {
		if category := entity.TaskFC.FunctionalType; category != "" {
			stats.ByCategory[category]++
		}
		stats.ByState[entity.TaskFC.CustomData.State]++
		if step := entity.TaskFC.CustomData.PipelineStep; step != "" {
			stats.ByPipelineStep[step]++
		}
	}

	return stats
}
