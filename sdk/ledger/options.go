package ledger

import "ledgerclient/sdk/internal/dial"

// DialOption controls how node connections are built.
type DialOption = dial.Option

var (
	WithTransportCredentials = dial.WithTransportCredentials
	WithTLSConfig            = dial.WithTLSConfig
	WithTLSFromFiles         = dial.WithTLSFromFiles
	WithInsecure             = dial.WithInsecure
	WithContextDialer        = dial.WithContextDialer
	WithPerRPCCredentials    = dial.WithPerRPCCredentials
	WithCallTimeout          = dial.WithCallTimeout
	WithHeader               = dial.WithHeader
	WithUserAgent            = dial.WithUserAgent
	WithDialOptions          = dial.WithDialOptions
)
