package telemetry

// Provider adapts a Store to hostproto.TelemetryProvider, so SysInfo
// requests always encode the snapshot current at request time.
type Provider struct {
	store *Store
}

// NewProvider wraps store for SysInfo wire encoding.
func NewProvider(store *Store) *Provider {
	return &Provider{store: store}
}

// SysInfoV1 returns the 50-byte V1 SysInfo payload for the current snapshot.
func (p *Provider) SysInfoV1() []byte {
	return EncodeV1(p.store.Get())
}

// SysInfoV2 returns the 63-byte V2 SysInfo payload for the current snapshot.
func (p *Provider) SysInfoV2() []byte {
	return EncodeV2(p.store.Get())
}
