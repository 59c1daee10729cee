package di

import (
	"flashback/internal/history"
	"flashback/internal/history/interfaces"
	"flashback/internal/providers"
	"flashback/internal/services"
	"flashback/internal/structures"

	"github.com/spf13/afero"
)

func provideFs() afero.Fs {
	return afero.NewOsFs()
}

// provideLogger closes the log files once the app has stopped.
func provideLogger(conf *structures.Config) (providers.Logger, func(), error) {
	logger, err := providers.NewLogProvider(conf)
	if err != nil {
		return nil, nil, err
	}
	return logger, logger.Close, nil
}

func provideCompressor() (interfaces.CompressorInterface, func(), error) {
	compressor, err := history.NewSnapshotCodec()
	if err != nil {
		return nil, nil, err
	}
	return compressor, compressor.Close, nil
}

func provideSessionCounter(history services.HistoryServiceInterface) providers.SessionCounter {
	return history
}

func provideRateLog(gauge services.RateGaugeInterface) interfaces.RateLogInterface {
	return gauge
}
