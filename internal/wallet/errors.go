package wallet

import "github.com/Fantasim/fcfsweep/internal/config"

var (
	ErrInvalidMnemonic = config.ErrInvalidMnemonic
	ErrDerivation      = config.ErrKeyDerivation
	ErrInvalidKey      = config.ErrInvalidKey
)
