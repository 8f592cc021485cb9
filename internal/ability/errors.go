package ability

import (
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/simcore/internal/component"
)

var ErrUnknownAbility = errors.New("unknown ability")

// CooldownError reports how long until the ability is ready again.
type CooldownError struct {
	AbilityID string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("ability %q on cooldown for %s", e.AbilityID, e.Remaining)
}

type ResourceError struct {
	Kind component.ResourceKind
	Have float64
	Need float64
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("insufficient %s: have %.2f, need %.2f", e.Kind, e.Have, e.Need)
}

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Wire codes for activation failures.
const (
	CodeUnknownAbility       = "unknown_ability"
	CodeOnCooldown           = "on_cooldown"
	CodeInsufficientResource = "insufficient_resource"
	CodeValidationFailed     = "validation_failed"
	CodeInternal             = "internal"
)

// Code maps an activation error to its wire code. nil maps to "".
func Code(err error) string {
	if err == nil {
		return ""
	}
	var (
		cd  *CooldownError
		res *ResourceError
		val *ValidationError
	)
	switch {
	case errors.Is(err, ErrUnknownAbility):
		return CodeUnknownAbility
	case errors.As(err, &cd):
		return CodeOnCooldown
	case errors.As(err, &res):
		return CodeInsufficientResource
	case errors.As(err, &val):
		return CodeValidationFailed
	default:
		return CodeInternal
	}
}
