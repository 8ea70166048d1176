package dsl

import (
	"github.com/devicelab-dev/screenkit/pkg/config"
	"github.com/devicelab-dev/screenkit/pkg/provider"
)

// OptionsFromConfig returns run options using the retry budget and results
// directory of cfg. It also opens the configured log file.
func OptionsFromConfig(cfg *config.Config, p provider.Provider) (Options, error) {
	retry, err := cfg.Safety()
	if err != nil {
		return Options{}, err
	}
	if err := cfg.InitLogging(); err != nil {
		return Options{}, err
	}
	return Options{
		Provider: p,
		Retry:    retry,
		Writer:   cfg.Writer(),
	}, nil
}
