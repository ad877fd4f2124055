package hardware

import (
	"errors"
	"fmt"

	"dynamic_power/internal/logger"
	"dynamic_power/internal/models"
)

// ErrDisclaimerNotAccepted is returned when root features are configured but
// the operator has not accepted the disclaimer.
var ErrDisclaimerNotAccepted = errors.New("root feature disclaimer not accepted")

// FeatureApplier writes the AC or battery value of each enabled root feature.
type FeatureApplier struct {
	writer Writer
	log    *logger.Logger
}

func NewFeatureApplier(w Writer, log *logger.Logger) *FeatureApplier {
	return &FeatureApplier{writer: w, log: log}
}

// Apply writes every enabled feature for src. Failures do not stop the
// remaining features; they are returned joined.
func (f *FeatureApplier) Apply(features models.RootFeatures, src models.PowerSource) error {
	if len(features.Items) == 0 {
		return nil
	}
	if !features.DisclaimerAccepted {
		f.log.Debugw("root_features_skipped", "reason", "disclaimer_not_accepted")
		return ErrDisclaimerNotAccepted
	}

	var errs []error
	for _, item := range features.Items {
		if !item.Enabled {
			continue
		}
		value := item.ValueFor(src)
		if value == "" {
			continue
		}
		if err := f.writer.WriteFile(item.Path, value); err != nil {
			errs = append(errs, fmt.Errorf("root feature %q: %w", item.Path, err))
			continue
		}
		f.log.Debugw("root_feature_written", "path", item.Path, "value", value, "source", src.String())
	}
	return errors.Join(errs...)
}
