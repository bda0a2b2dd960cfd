package common

const (
	ProjectFileName = "chunkc.toml"
	Version         = "0.1.0"
	EnvLogLevel     = "CHUNKC_LOGLEVEL"
	DefaultOutput   = "chunks.json"
)
