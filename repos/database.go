package repos

type DB interface {
	NewMagicTokenRepository() MagicTokenRepository
	NewRefreshTokenRepository() RefreshTokenRepository
	NewRevokedTokenRepository() RevokedTokenRepository
	NewSecurityEventRepository() SecurityEventRepository
	NewSystemRepository() SystemRepository
	Close() error
}
