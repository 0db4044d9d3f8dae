package domain

import (
	"errors"

	"github.com/smallbiznis/premium/pkg/db"
)

var (
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrUnknownFeature        = errors.New("unknown_feature")
	ErrUnknownParameter      = errors.New("unknown_parameter")
	ErrInvalidParameter      = errors.New("invalid_parameter")
	ErrInvalidConfig         = errors.New("invalid_config")
	ErrInvalidCandidate      = errors.New("invalid_candidate")
	ErrStrategyMisconfigured = errors.New("strategy_misconfigured")
	ErrStrategyFailure       = errors.New("strategy_failure")
	ErrTransactionConflict   = db.ErrTransactionConflict
)
