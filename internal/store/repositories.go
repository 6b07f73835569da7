package store

import "github.com/MostroP2P/mostrix/internal/logger"

// Repositories bundles every repository over one database handle.
type Repositories struct {
	UserRepository    UserRepository
	TradeRepository   TradeRepository
	DisputeRepository DisputeRepository
	ChatRepository    ChatRepository
}

func NewRepositories(db *DB, log *logger.Logger) *Repositories {
	return &Repositories{
		UserRepository:    NewUserRepository(db, log),
		TradeRepository:   NewTradeRepository(db, log),
		DisputeRepository: NewDisputeRepository(db, log),
		ChatRepository:    NewChatRepository(db, log),
	}
}
