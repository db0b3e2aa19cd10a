package service

// Config carries the tunable business policies of the stock engine.
type Config struct {
	ExpiryWarningDays   int  // Horizon for EXPIRING_SOON, days
	ReturnWindowHours   int  // Sale age limit for returns, inclusive at the boundary
	AllowRestockExpired bool // Permit returns to restore into expired/damaged lots
	LockTimeoutMS       int  // Row-lock wait budget for allocation/reversal transactions
}

// DefaultConfig returns the stock policy defaults.
func DefaultConfig() Config {
	return Config{
		ExpiryWarningDays:   30,
		ReturnWindowHours:   24,
		AllowRestockExpired: false,
		LockTimeoutMS:       3000,
	}
}
