package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantDirect            = "direct"
)

// Metrics holds the Prometheus collectors for code and token activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	CodesIssued   prometheus.Counter
	CodesConsumed *prometheus.CounterVec
	TokensIssued  *prometheus.CounterVec
	TokenLookups  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		CodesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sa_oauth_codes_issued_total",
			Help: "Total number of authorization codes issued.",
		}),
		CodesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sa_oauth_codes_consumed_total",
			Help: "Authorization code exchange attempts by result.",
		}, []string{"result"}),
		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sa_oauth_tokens_issued_total",
			Help: "Access/refresh token pairs issued by grant.",
		}, []string{"grant"}),
		TokenLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sa_oauth_token_lookups_total",
			Help: "Access token lookups by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.CodesIssued, m.CodesConsumed, m.TokensIssued, m.TokenLookups} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) codeIssued() {
	if m == nil {
		return
	}
	m.CodesIssued.Inc()
}

func (m *Metrics) codeConsumed(result string) {
	if m == nil {
		return
	}
	m.CodesConsumed.WithLabelValues(result).Inc()
}

func (m *Metrics) tokenIssued(grant string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(grant).Inc()
}

func (m *Metrics) tokenLookup(result string) {
	if m == nil {
		return
	}
	m.TokenLookups.WithLabelValues(result).Inc()
}
