package forensics

// Badges maps metrics to display badges: human likelihood, effort and AI
// signature, in that order. A nil metrics value yields no badges.
func Badges(m *TypingMetrics) []Badge {
	if m == nil {
		return nil
	}
	return []Badge{
		likelihoodBadge(m.HumanLikelihood),
		effortBadge(m.EffortScore),
		aiSignatureBadge(m.AISignatureScore),
	}
}

func likelihoodBadge(score int) Badge {
	switch {
	case score >= 80:
		return Badge{"Likely Human", CategorySuccess}
	case score >= 60:
		return Badge{"Possibly Human", CategoryWarning}
	default:
		return Badge{"Low Human Likelihood", CategoryDanger}
	}
}

func effortBadge(e Effort) Badge {
	switch e {
	case EffortHigh:
		return Badge{"High Effort", CategorySuccess}
	case EffortMedium:
		return Badge{"Medium Effort", CategoryInfo}
	default:
		return Badge{"Low Effort", CategoryWarning}
	}
}

func aiSignatureBadge(score float64) Badge {
	switch {
	case score < 0.3:
		return Badge{"No AI Signature", CategorySuccess}
	case score < 0.6:
		return Badge{"Possible AI Use", CategoryWarning}
	default:
		return Badge{"Strong AI Signature", CategoryDanger}
	}
}
