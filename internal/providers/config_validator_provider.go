package providers

import (
	"errors"

	"flashback/internal/structures"

	"github.com/gookit/validate"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		return v.Errors
	}

	if cv.conf.Persistence.Backend == structures.BackendRedis && cv.conf.Persistence.Redis.Addr == "" {
		return errors.New("persistence.redis.addr is required for the redis backend")
	}
	if cv.conf.Generator.MaxConcurrency < 0 {
		return errors.New("generator.maxConcurrency must not be negative")
	}
	if cv.conf.History.MaxEntries < 0 {
		return errors.New("history.maxEntries must not be negative")
	}
	return nil
}
