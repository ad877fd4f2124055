package service

import "dynamic_power/internal/models"

// ResolveInput is everything the precedence chain looks at.
type ResolveInput struct {
	Load        float64
	Thresholds  models.Thresholds
	Source      models.PowerSource
	GraceActive bool
	Override    string
	Privileged  bool
}

// Baseline maps a load sample onto the three canonical bands.
func Baseline(load float64, t models.Thresholds) string {
	switch {
	case load < t.Low:
		return models.ProfilePowersave
	case load > t.High:
		return models.ProfilePerformance
	default:
		return models.ProfileBalanced
	}
}

// Resolve picks the target profile. Later rules win:
//
//  1. baseline from load
//  2. an override replaces it; unprivileged overrides on battery become powersave
//  3. without an override, battery forces powersave
//  4. an active grace period forces performance
//
// Resolve does no I/O and does not know which profiles exist.
func Resolve(in ResolveInput) string {
	target := Baseline(in.Load, in.Thresholds)

	if in.Override != "" {
		if in.Source.OnBattery() && !in.Privileged {
			target = models.ProfilePowersave
		} else {
			target = in.Override
		}
	} else if in.Source.OnBattery() {
		target = models.ProfilePowersave
	}

	if in.GraceActive {
		target = models.ProfilePerformance
	}
	return target
}

// EffectiveThresholds returns requested unless it is the (0,0) "no override" pair.
func EffectiveThresholds(configured, requested models.Thresholds) models.Thresholds {
	if requested.IsZero() {
		return configured
	}
	return requested
}
