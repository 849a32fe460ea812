package syncroot

// ProviderOptions identifies the storage provider that owns the roots it registers.
type ProviderOptions struct {
	ProviderID string `toml:"provider_id"`
}

// Validate checks the options once at provider startup.
func (o ProviderOptions) Validate() error {
	if o.ProviderID == "" {
		return ErrMissingProviderID
	}
	return nil
}
