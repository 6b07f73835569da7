package service

import (
	"github.com/MostroP2P/mostrix/internal/correlate"
	"github.com/MostroP2P/mostrix/internal/envelope"
	"github.com/MostroP2P/mostrix/internal/keyring"
	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/internal/relay"
	"github.com/MostroP2P/mostrix/internal/store"
)

// Services bundles the user and arbitrator operation surfaces.
type Services struct {
	Order OrderService
	// Admin is nil unless an arbitrator key is configured.
	Admin AdminService
}

// New wires the services over the shared transport, correlator and
// repositories. admin may be nil.
func New(deriver *keyring.Deriver, identity, admin *keyring.Keys, transport relay.Client, correlator *correlate.Correlator, repos *store.Repositories, coordinator string, opts envelope.Options, log *logger.Logger) *Services {
	s := &Services{
		Order: NewOrderService(deriver, identity, transport, correlator, repos.UserRepository, repos.TradeRepository, coordinator, opts, correlate.NewRequestID, log),
	}
	if admin != nil {
		s.Admin = NewAdminService(admin, correlator, repos.DisputeRepository, coordinator, opts, correlate.NewRequestID, log)
	}
	return s
}
