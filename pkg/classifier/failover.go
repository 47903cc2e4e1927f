package classifier

import (
	"log/slog"

	"github.com/nabusboi/smart-support-routing/pkg/breaker"
)

// Failover gates the primary classifier through a circuit breaker and falls
// back to the keyword classifier when the primary errors or the circuit is
// open. Classify never returns an error because the fallback cannot fail.
type Failover struct {
	primary  Classifier
	fallback *Keyword
	breaker  *breaker.Breaker
}

// NewFailover wires the primary classifier behind the breaker.
func NewFailover(primary Classifier, b *breaker.Breaker) *Failover {
	return &Failover{
		primary:  primary,
		fallback: NewKeyword(),
		breaker:  b,
	}
}

// Classify tries the primary within the breaker, then the keyword fallback.
func (f *Failover) Classify(subject, description string) (Classification, error) {
	var out Classification
	err := f.breaker.Execute(func() error {
		c, err := f.primary.Classify(subject, description)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err == nil {
		out.Model = ModelPrimary
		return out, nil
	}

	slog.Warn("Primary classifier unavailable, using keyword fallback", "error", err)
	out, _ = f.fallback.Classify(subject, description)
	out.Model = ModelKeywordFallback
	return out, nil
}

// Breaker exposes the underlying breaker for stats and the manual toggle.
func (f *Failover) Breaker() *breaker.Breaker {
	return f.breaker
}
