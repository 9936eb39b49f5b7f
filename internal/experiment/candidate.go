package experiment

import "github.com/ternarybob/analysisd/internal/project"

// ApplyCandidate returns column with its TopicModeling hyperparameters
// overridden by whichever keys the candidate sets, leaving every
// untouched field at its prior value (§4.8 step 2).
func ApplyCandidate(column project.TextualColumn, candidate Candidate) project.TextualColumn {
	tm := column.TopicModeling

	if v, ok := toInt(candidate["min_topic_size"]); ok {
		tm.MinTopicSize = v
	}
	if v, ok := toFloat(candidate["max_topic_size"]); ok {
		tm.MaxTopicSize = v
	}
	if v, ok := toFloat(candidate["clustering_conservativeness"]); ok {
		tm.ClusteringConservativeness = v
	}
	if v, ok := toInt(candidate["top_n_words"]); ok {
		tm.TopNWords = v
	}

	column.TopicModeling = tm
	return column
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
