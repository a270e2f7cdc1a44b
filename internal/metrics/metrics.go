package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ledger_wallet"

const (
	ResultSuccess     = "success"
	ResultFailure     = "failure"
	ResultUnavailable = "unavailable"
	ResultInvalid     = "invalid"
)

// Service holds the collectors of the wallet and provider layers.
// All methods are safe to call on a nil *Service.
type Service struct {
	walletOpens           *prometheus.CounterVec
	addressesDerived      prometheus.Counter
	providerConstructions *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them globally.
func New(reg prometheus.Registerer) (*Service, error) {
	s := &Service{
		walletOpens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_open_total",
			Help:      "Number of hardware wallet open attempts by result.",
		}, []string{"result"}),
		addressesDerived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_addresses_derived_total",
			Help:      "Number of child addresses derived from device root keys.",
		}),
		providerConstructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_constructions_total",
			Help:      "Number of RPC provider constructions by provider kind and result.",
		}, []string{"kind", "result"}),
	}

	for _, c := range []prometheus.Collector{s.walletOpens, s.addressesDerived, s.providerConstructions} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register collector")
		}
	}

	return s, nil
}

func (s *Service) WalletOpened(result string) {
	if s == nil {
		return
	}
	s.walletOpens.WithLabelValues(result).Inc()
}

func (s *Service) AddressesDerived(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.addressesDerived.Add(float64(n))
}

func (s *Service) ProviderConstructed(kind string, result string) {
	if s == nil {
		return
	}
	s.providerConstructions.WithLabelValues(kind, result).Inc()
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, for the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
