package transfer

const (
	DefaultChunkSize = 64 * 1024 // plaintext bytes per transit record

	DefaultMaxReceiveSize = 2 << 30 // 2GiB
)
