package common

// Provider name constants for consistent naming across the application
const (
	// ProviderHimawari is the cache and internal identifier for Himawari-8 full-disk imagery
	ProviderHimawari = "himawari8"

	// DisplayNameHimawari is the human-readable name shown in logs
	DisplayNameHimawari = "Himawari-8"
)
